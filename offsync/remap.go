// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TempIDPrefix marks a client-generated placeholder identifier. Any string
// value starting with this prefix under a known foreign-key field is a
// reference to an entity that may not have synced yet.
const TempIDPrefix = "temp-"

// refKind says how a resolved server id must be coerced before it is written
// back into the body.
type refKind int

const (
	refNumeric refKind = iota // report ids are numeric on the wire
	refString                 // field ids stay strings
)

type refField struct {
	entity string
	kind   refKind
}

// foreignRefFields is the closed registry of body fields that can hold a
// temp-id reference, mapped to the entity whose id_map scope resolves them.
var foreignRefFields = map[string]refField{
	"report_id": {entity: "report", kind: refNumeric},
	"reportId":  {entity: "report", kind: refNumeric},
	"field_id":  {entity: "field", kind: refString},
	"fieldId":   {entity: "field", kind: refString},
}

// remapBody rewrites temp-id foreign references in a JSON body using the id
// reconciliation map. It returns the rewritten body, or postponed=true when
// at least one reference has no mapping yet — the entry must stay queued for
// a later pass.
//
// Bodies may nest (e.g. a report's productivity sub-object), so the visitor
// descends into objects and arrays.
func remapBody(ctx context.Context, idmap *IDMap, body json.RawMessage) (json.RawMessage, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false, fmt.Errorf("failed to decode body for remap: %w", err)
	}

	postponed, err := remapValue(ctx, idmap, decoded)
	if err != nil {
		return nil, false, err
	}
	if postponed {
		return body, true, nil
	}

	out, err := json.Marshal(decoded)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode remapped body: %w", err)
	}
	return out, false, nil
}

func remapValue(ctx context.Context, idmap *IDMap, v any) (postponed bool, err error) {
	switch node := v.(type) {
	case map[string]any:
		for key, val := range node {
			switch child := val.(type) {
			case map[string]any, []any:
				p, err := remapValue(ctx, idmap, child)
				if err != nil {
					return false, err
				}
				postponed = postponed || p
			case string:
				if !strings.HasPrefix(child, TempIDPrefix) {
					continue
				}
				ref, ok := foreignRefFields[key]
				if !ok {
					continue
				}
				serverID, found, err := idmap.Lookup(ctx, ref.entity, child)
				if err != nil {
					return false, err
				}
				if !found {
					postponed = true
					continue
				}
				resolved, err := coerceRef(ref.kind, serverID)
				if err != nil {
					return false, fmt.Errorf("failed to coerce %s reference %q: %w", ref.entity, serverID, err)
				}
				node[key] = resolved
			}
		}
	case []any:
		for _, item := range node {
			p, err := remapValue(ctx, idmap, item)
			if err != nil {
				return false, err
			}
			postponed = postponed || p
		}
	}
	return postponed, nil
}

func coerceRef(kind refKind, serverID string) (any, error) {
	if kind == refNumeric {
		n, err := strconv.ParseInt(serverID, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return serverID, nil
}
