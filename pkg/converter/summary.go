package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/james-see/midilib/pkg/smf"
)

// Summary describes a MIDI file for inspection.
type Summary struct {
	Format int16          `json:"format"`
	PPQ    int16          `json:"ppq"`
	Tracks []TrackSummary `json:"tracks"`
}

// TrackSummary describes one track.
type TrackSummary struct {
	Index            int            `json:"index"`
	Name             string         `json:"name,omitempty"`
	Entries          int            `json:"entries"`
	Events           int            `json:"events"`
	Ticks            uint64         `json:"ticks"`
	Kinds            map[string]int `json:"kinds"`
	HasChannelEvents bool           `json:"has_channel_events"`
	Channels         []uint8        `json:"channels,omitempty"`
	Tempo            uint32         `json:"tempo,omitempty"`
}

// Summarize walks every track of f.
func Summarize(f *smf.File) Summary {
	s := Summary{Format: f.Format(), PPQ: f.PPQ, Tracks: make([]TrackSummary, 0, f.TrackCount())}

	for i, tr := range f.Tracks() {
		ts := TrackSummary{
			Index:            i,
			Entries:          tr.Len(),
			Ticks:            tr.Ticks(),
			Kinds:            map[string]int{},
			HasChannelEvents: tr.CheckNonMetaMessages(),
		}
		seen := map[uint8]bool{}
		for _, m := range tr.Messages() {
			if m.Kind() == smf.KindDelta {
				continue
			}
			ts.Events++
			ts.Kinds[m.Kind().String()]++

			switch m := m.(type) {
			case smf.Meta:
				if m.Type == smf.MetaTrackName && ts.Name == "" {
					ts.Name, _ = m.Text(nil)
				}
				if tempo, ok := m.Tempo(); ok && ts.Tempo == 0 {
					ts.Tempo = tempo
				}
			default:
				if ch, ok := channelOfMessage(m); ok && !seen[ch] {
					seen[ch] = true
					ts.Channels = append(ts.Channels, ch)
				}
			}
		}
		sort.Slice(ts.Channels, func(a, b int) bool { return ts.Channels[a] < ts.Channels[b] })
		s.Tracks = append(s.Tracks, ts)
	}
	return s
}

func channelOfMessage(m smf.Message) (uint8, bool) {
	switch m := m.(type) {
	case smf.NoteOff:
		return m.Channel.Get()
	case smf.NoteOn:
		return m.Channel.Get()
	case smf.AfterTouch:
		return m.Channel.Get()
	case smf.Controller:
		return m.Channel.Get()
	case smf.Patch:
		return m.Channel.Get()
	case smf.Pressure:
		return m.Channel.Get()
	case smf.PitchBend:
		return m.Channel.Get()
	}
	return 0, false
}

// BPM converts a set-tempo value to beats per minute.
func BPM(microsPerQuarter uint32) float64 {
	if microsPerQuarter == 0 {
		return 0
	}
	return 60000000.0 / float64(microsPerQuarter)
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Format: %d\n", s.Format)
	fmt.Fprintf(&b, "PPQ:    %d\n", s.PPQ)
	fmt.Fprintf(&b, "Tracks: %d\n", len(s.Tracks))
	for _, t := range s.Tracks {
		fmt.Fprintf(&b, "\nTrack %d", t.Index)
		if t.Name != "" {
			fmt.Fprintf(&b, " %q", t.Name)
		}
		fmt.Fprintf(&b, "\n  Events: %d (%d entries), %d ticks\n", t.Events, t.Entries, t.Ticks)
		if t.Tempo > 0 {
			fmt.Fprintf(&b, "  Tempo:  %.1f BPM\n", BPM(t.Tempo))
		}
		if len(t.Channels) > 0 {
			chs := make([]string, len(t.Channels))
			for i, ch := range t.Channels {
				chs[i] = fmt.Sprint(ch)
			}
			fmt.Fprintf(&b, "  Channels: %s\n", strings.Join(chs, ", "))
		}
		kinds := make([]string, 0, len(t.Kinds))
		for k := range t.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-11s %d\n", k+":", t.Kinds[k])
		}
	}
	return b.String()
}
