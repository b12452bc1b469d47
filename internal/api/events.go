package api

import (
	"encoding/json"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/status"
)

// eventPayload flattens a bus payload into something a Struct can carry.
// Message batches are summarized rather than sent whole.
func eventPayload(evt bus.Event) map[string]any {
	switch p := evt.Payload.(type) {
	case nil:
		return nil
	case fetch.Request:
		return requestFields(p)
	case fetch.Result:
		m := requestFields(p.Request)
		m["count"] = p.Count
		m["found_oldest"] = p.FoundOldest
		m["found_newest"] = p.FoundNewest
		m["history_limited"] = p.HistoryLimited
		if p.Stale {
			m["stale"] = true
		}
		if p.Err != "" {
			m["error"] = p.Err
		}
		return m
	case fetch.Batch:
		m := map[string]any{"list": p.List, "count": len(p.Messages), "live": p.Live}
		if n := len(p.Messages); n > 0 {
			m["first_id"] = p.Messages[0].ID
			m["last_id"] = p.Messages[n-1].ID
		}
		return m
	case status.StatusChange:
		return map[string]any{"from": string(p.From), "to": string(p.To)}
	case string:
		return map[string]any{"message": p}
	case error:
		return map[string]any{"error": p.Error()}
	}

	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"value": string(data)}
	}
	return m
}

func requestFields(r fetch.Request) map[string]any {
	m := map[string]any{
		"request_id": r.ID,
		"list":       r.List,
		"reason":     r.Reason,
		"anchor":     string(r.Anchor),
		"num_before": r.NumBefore,
		"num_after":  r.NumAfter,
		"direction":  r.Direction(),
	}
	if r.Narrow != "" {
		m["narrow"] = r.Narrow
	}
	return m
}
