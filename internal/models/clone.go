package models

import "maps"

// Clone returns a deep copy of the response. Nested result maps and slices
// are copied so callers can mutate the copy freely.
func (r *OrchestratorResponse) Clone() *OrchestratorResponse {
	if r == nil {
		return nil
	}
	out := *r
	out.Recommendation = r.Recommendation.Clone()
	out.AgentsInvolved = cloneSlice(r.AgentsInvolved)
	out.ProcessingDetails.AgentsInvolved = cloneSlice(r.ProcessingDetails.AgentsInvolved)
	out.ProcessingDetails.AgentStatuses = maps.Clone(r.ProcessingDetails.AgentStatuses)
	if r.ProcessingDetails.Error != nil {
		e := *r.ProcessingDetails.Error
		e.Details = cloneMap(e.Details)
		out.ProcessingDetails.Error = &e
	}
	return &out
}

// Clone returns a deep copy of the recommendation
func (r *Recommendation) Clone() *Recommendation {
	if r == nil {
		return nil
	}
	out := *r
	if r.Recommendations != nil {
		out.Recommendations = make([]Candidate, len(r.Recommendations))
		for i, c := range r.Recommendations {
			c.Content = cloneMap(c.Content)
			out.Recommendations[i] = c
		}
	}
	out.Metadata.AgentsInvolved = cloneSlice(r.Metadata.AgentsInvolved)
	out.Metadata.ConfidenceBreakdown = maps.Clone(r.Metadata.ConfidenceBreakdown)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container shapes agents put in results; scalars and
// unknown types are shared
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []map[string]interface{}:
		if t == nil {
			return t
		}
		out := make([]map[string]interface{}, len(t))
		for i, m := range t {
			out[i] = cloneMap(m)
		}
		return out
	case []interface{}:
		if t == nil {
			return t
		}
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return cloneSlice(t)
	case []float64:
		return cloneSlice(t)
	case []int:
		return cloneSlice(t)
	}
	return v
}
