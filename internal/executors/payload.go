package executors

import (
	"encoding/json"
	"strings"

	"worknest/internal/jobs"
)

func decodePayload(payload string, v any) error {
	if strings.TrimSpace(payload) == "" {
		return jobs.NewExecutionError("invalid payload: empty", nil)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return jobs.NewExecutionError("invalid payload: "+err.Error(), err)
	}
	return nil
}
