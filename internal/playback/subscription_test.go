package playback

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/llehouerou/pocketwaves/internal/library"
)

func TestNewSubscription_ChannelsReadable(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sub := newSubscription()

		send(sub.stateCh, StateChange{Previous: StateStopped, Current: StatePlaying})
		send(sub.trackCh, TrackChange{Index: 1})
		send(sub.positionCh, PositionChange{Position: 30 * time.Second})
		send(sub.queueCh, QueueChange{Index: 2, Tracks: []library.Track{{URI: "/test/queue.mp3"}}})
		send(sub.modeCh, ModeChange{RepeatMode: RepeatAll, Shuffle: true})
		send(sub.favoriteCh, FavoriteChange{TrackID: "x", Favorite: true})

		e := <-sub.StateChanged
		if e.Current != StatePlaying {
			t.Errorf("StateChanged.Current = %v, want Playing", e.Current)
		}

		tr := <-sub.TrackChanged
		if tr.Index != 1 {
			t.Errorf("TrackChanged.Index = %d, want 1", tr.Index)
		}

		pos := <-sub.PositionChanged
		if pos.Position != 30*time.Second {
			t.Errorf("PositionChanged.Position = %v, want 30s", pos.Position)
		}

		q := <-sub.QueueChanged
		if q.Index != 2 || len(q.Tracks) != 1 || q.Tracks[0].URI != "/test/queue.mp3" {
			t.Errorf("QueueChanged = %+v", q)
		}

		m := <-sub.ModeChanged
		if m.RepeatMode != RepeatAll || !m.Shuffle {
			t.Errorf("ModeChanged = %+v", m)
		}

		if f := <-sub.FavoriteChanged; !f.Favorite {
			t.Errorf("FavoriteChanged = %+v", f)
		}
	})
}

func TestSubscription_Close_SignalsDone(t *testing.T) {
	synctest.Test(t, func(_ *testing.T) {
		sub := newSubscription()
		sub.close()
		<-sub.Done
	})
}

func TestSubscription_NonBlocking_DropsWhenFull(t *testing.T) {
	sub := newSubscription()

	for range eventBufferSize + 5 {
		send(sub.stateCh, StateChange{})
	}

	count := 0
	for {
		select {
		case <-sub.StateChanged:
			count++
		default:
			if count != eventBufferSize {
				t.Errorf("received %d events, want %d (buffer size)", count, eventBufferSize)
			}
			return
		}
	}
}
