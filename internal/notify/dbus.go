//go:build linux

package notify

import (
	"html"
	"slices"

	"github.com/godbus/dbus/v5"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = "/org/freedesktop/Notifications"
	busMethod = busName + "."

	appName      = "Pocketwaves"
	desktopEntry = "pocketwaves"
)

type dbusNotifier struct {
	obj    dbus.BusObject
	markup bool
}

// New connects to the session bus notification server. Without a session
// bus it returns a notifier that drops everything.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return noopNotifier{}, nil //nolint:nilerr // notifications are optional
	}
	n := &dbusNotifier{obj: conn.Object(busName, busPath)}

	var caps []string
	if err := n.obj.Call(busMethod+"GetCapabilities", 0).Store(&caps); err == nil {
		n.markup = slices.Contains(caps, "body-markup")
	}
	return n, nil
}

func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	body := notif.Body
	if n.markup {
		body = html.EscapeString(body)
	}

	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant(desktopEntry),
		"category":      dbus.MakeVariant("x-gnome.music"),
	}
	if notif.Icon != "" {
		hints["image-path"] = dbus.MakeVariant(notif.Icon)
	}

	var id uint32
	err := n.obj.Call(busMethod+"Notify", 0,
		appName, notif.ReplacesID, notif.Icon,
		notif.Title, body, []string{}, hints, notif.Timeout,
	).Store(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (n *dbusNotifier) Close(id uint32) error {
	return n.obj.Call(busMethod+"CloseNotification", 0, id).Err
}
