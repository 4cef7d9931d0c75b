package workpools

import (
	"encoding/json"
	"time"
)

// WorkPool is a named grouping of workers owned by the backend. The view only
// reads Name; known attributes are typed for convenience and anything else is
// kept in Extra so it survives caching and persistence.
type WorkPool struct {
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Type             string          `json:"type,omitempty"`
	IsPaused         bool            `json:"is_paused"`
	ConcurrencyLimit *int            `json:"concurrency_limit,omitempty"`
	Status           string          `json:"status,omitempty"`
	DefaultQueueID   string          `json:"default_queue_id,omitempty"`
	BaseJobTemplate  json.RawMessage `json:"base_job_template,omitempty"`
	Created          *time.Time      `json:"created,omitempty"`
	Updated          *time.Time      `json:"updated,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = map[string]struct{}{
	"id": {}, "name": {}, "description": {}, "type": {}, "is_paused": {},
	"concurrency_limit": {}, "status": {}, "default_queue_id": {},
	"base_job_template": {}, "created": {}, "updated": {},
}

// workPoolAlias drops the methods so the codec below does not recurse.
type workPoolAlias WorkPool

func (w *WorkPool) UnmarshalJSON(data []byte) error {
	var a workPoolAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range knownFields {
		delete(all, k)
	}
	if len(all) > 0 {
		a.Extra = all
	}
	*w = WorkPool(a)
	return nil
}

func (w WorkPool) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(workPoolAlias(w))
	if err != nil || len(w.Extra) == 0 {
		return base, err
	}
	merged := make(map[string]json.RawMessage, len(w.Extra)+len(knownFields))
	for k, v := range w.Extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}
