package scenario

import "encoding/json"

// Merge fills every unset field of r from src and returns r. Set fields,
// including empty strings and empty maps, are never overwritten. Maps are
// copied so r and src never share one.
func (r *Request) Merge(src *Request) *Request {
	if r == nil || src == nil {
		return r
	}
	fill(&r.BaseURI, src.BaseURI)
	fill(&r.Endpoint, src.Endpoint)
	fill(&r.Method, src.Method)
	fillMap(&r.Headers, src.Headers)
	fillRaw(&r.Body, src.Body)
	fillMap(&r.Params, src.Params)
	fillMap(&r.QueryParams, src.QueryParams)
	fillMap(&r.PathParams, src.PathParams)
	fillMap(&r.FormParams, src.FormParams)
	fill(&r.ContentType, src.ContentType)
	fill(&r.AuthRequired, src.AuthRequired)
	fill(&r.AuthToken, src.AuthToken)
	fill(&r.AuthFunctionName, src.AuthFunctionName)
	return r
}

// Merge fills the unset fields of s from src, then merges the requests. A
// step without a request receives a copy of the one in src.
func (s *Step) Merge(src *Step) *Step {
	if s == nil || src == nil {
		return s
	}
	fill(&s.StepName, src.StepName)
	fill(&s.StepDescription, src.StepDescription)
	fill(&s.ExpectedStatusCode, src.ExpectedStatusCode)
	fillRaw(&s.ExpectedResponse, src.ExpectedResponse)

	if s.Request == nil {
		s.Request = src.Request.Clone()
	} else {
		s.Request.Merge(src.Request)
	}
	return s
}

// Merge overlays global onto every step of the scenario.
func (s *Scenario) Merge(global *Step) *Scenario {
	if global == nil {
		return s
	}
	for _, step := range s.Steps {
		step.Merge(global)
	}
	return s
}

func fill[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		*dst = clonePtr(src)
	}
}

func fillMap(dst *map[string]any, src map[string]any) {
	if *dst == nil && src != nil {
		*dst = cloneMap(src)
	}
}

func fillRaw(dst *json.RawMessage, src json.RawMessage) {
	if !rawSet(*dst) && rawSet(src) {
		*dst = cloneRaw(src)
	}
}
