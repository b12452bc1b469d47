package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/zfetch/internal/api"
	"github.com/matheus3301/zfetch/internal/fetchstatus"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *options) printStatus(st *api.StatusReply) error {
	if o.json {
		return writeJSON(o.out, st)
	}
	w := o.out
	fmt.Fprintf(w, "Session:   %s\n", st.Session)
	fmt.Fprintf(w, "State:     %s\n", st.State)
	fmt.Fprintf(w, "Pointer:   %s\n", st.Pointer)
	fmt.Fprintf(w, "Current:   %s\n", st.Current)
	fmt.Fprintf(w, "Cached:    %d messages (%d unread)\n", st.CachedMessages, st.Unread)
	fmt.Fprintf(w, "Uptime:    %s\n", (time.Duration(st.UptimeMS) * time.Millisecond).Round(time.Second))
	if st.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", st.Error)
	}
	if len(st.Lists) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LIST\tMESSAGES\tRANGE\tSELECTED\tFETCH\tNARROW")
	for _, l := range st.Lists {
		rng := "-"
		if l.Messages > 0 {
			rng = fmt.Sprintf("%d..%d", l.FirstID, l.LastID)
		}
		selected := "-"
		if l.Selected >= 0 {
			selected = fmt.Sprint(l.Selected)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", l.Name, l.Messages, rng, selected, fetchFlags(l.Fetch), l.Narrow)
	}
	return tw.Flush()
}

// fetchFlags renders a FetchStatus as a short flag list, e.g.
// "oldest,loading-newer".
func fetchFlags(s fetchstatus.Snapshot) string {
	var flags []string
	if s.FoundOldest {
		flags = append(flags, "oldest")
	}
	if s.FoundNewest {
		flags = append(flags, "newest")
	}
	if s.HistoryLimited {
		flags = append(flags, "history-limited")
	}
	if s.LoadingOlder {
		flags = append(flags, "loading-older")
	}
	if s.LoadingNewer {
		flags = append(flags, "loading-newer")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func printMessages(w io.Writer, msgs []api.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "no messages")
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(w, "%d  %s  %s  %s\n", m.ID, formatTime(m.Timestamp), where(m), m.SenderName)
		fmt.Fprintf(w, "    %s\n", oneLine(m.Content, 100))
	}
}

func printSearch(w io.Writer, hits []api.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%d  %s  %s\n", h.Message.ID, where(h.Message), h.Message.SenderName)
		fmt.Fprintf(w, "    %s\n", oneLine(h.Snippet, 100))
	}
}

func printEvent(w io.Writer, evt api.Event) {
	ts := time.UnixMilli(evt.OccurredAtMS).Format("15:04:05.000")
	keys := make([]string, 0, len(evt.Payload))
	for k := range evt.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, evt.Payload[k])
	}
	fmt.Fprintf(w, "%s %-22s%s\n", ts, evt.Kind, b.String())
}

func where(m api.Message) string {
	if m.Type == "stream" {
		return "#" + m.Stream + " > " + m.Subject
	}
	return "private"
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).Format("2006-01-02 15:04")
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
