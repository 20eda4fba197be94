package schedule

import (
	"fmt"
	"strings"
)

// ResolveCalls maps an entry's action references through the action table
// into fully qualified calls, in listed order.
//
// References outside the table are skipped, not rejected. An unqualified
// service borrows the entity's domain and an unqualified entity borrows
// the service's domain; when neither side carries one the call fails with
// ErrAmbiguousDomain. An explicit "entity_id" parameter overrides the
// derived entity after qualification.
func ResolveCalls(e Entry, actions []Action) ([]ActionCall, error) {
	calls := make([]ActionCall, 0, len(e.Actions))
	for _, ref := range e.Actions {
		if ref < 0 || ref >= len(actions) {
			continue
		}
		call, err := resolveAction(actions[ref])
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func resolveAction(a Action) (ActionCall, error) {
	call := ActionCall{Service: a.Service, EntityID: a.Entity}

	if !strings.Contains(call.Service, ".") {
		dot := strings.Index(call.EntityID, ".")
		if dot < 0 {
			return ActionCall{}, fmt.Errorf("%w: service %q has no domain and entity %q cannot supply one",
				ErrAmbiguousDomain, call.Service, call.EntityID)
		}
		call.Service = call.EntityID[:dot] + "." + call.Service
	} else if call.EntityID != "" && !strings.Contains(call.EntityID, ".") {
		call.EntityID = call.Service[:strings.Index(call.Service, ".")] + "." + call.EntityID
	}

	// An explicit entity_id parameter wins over whatever was derived.
	if v, ok := a.Params["entity_id"]; ok {
		if s, ok := v.(string); ok {
			call.EntityID = s
		}
	}

	for k, v := range a.Params {
		switch k {
		case "service", "entity", "entity_id":
			continue
		}
		if call.Data == nil {
			call.Data = map[string]any{}
		}
		call.Data[k] = v
	}
	return call, nil
}
