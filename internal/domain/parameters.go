package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type ParameterType string

const (
	ParameterTypeLong   ParameterType = "LONG"
	ParameterTypeString ParameterType = "STRING"
	ParameterTypeDouble ParameterType = "DOUBLE"
	ParameterTypeDate   ParameterType = "DATE"
)

// JobParameter is a single typed run parameter.
// Only identifying parameters contribute to the instance key.
type JobParameter struct {
	Type        ParameterType
	Value       any
	Identifying bool
}

// wireParameter keeps the value as a string so LONG values survive JSON
// without float64 rounding.
type wireParameter struct {
	Type        ParameterType `json:"type"`
	Value       string        `json:"value"`
	Identifying bool          `json:"identifying"`
}

func (p JobParameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireParameter{Type: p.Type, Value: p.String(), Identifying: p.Identifying})
}

func (p *JobParameter) UnmarshalJSON(data []byte) error {
	var w wireParameter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	param, err := ParseParameter(w.Type, w.Value)
	if err != nil {
		return err
	}
	param.Identifying = w.Identifying
	*p = param
	return nil
}

// ParseParameter builds an identifying parameter from its string form.
// DATE values are epoch milliseconds.
func ParseParameter(typ ParameterType, value string) (JobParameter, error) {
	switch typ {
	case ParameterTypeLong:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return JobParameter{}, fmt.Errorf("parse LONG %q: %w", value, err)
		}
		return LongParameter(v), nil
	case ParameterTypeDouble:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return JobParameter{}, fmt.Errorf("parse DOUBLE %q: %w", value, err)
		}
		return DoubleParameter(v), nil
	case ParameterTypeDate:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return JobParameter{}, fmt.Errorf("parse DATE %q: %w", value, err)
		}
		return DateParameter(time.UnixMilli(v)), nil
	case ParameterTypeString:
		return StringParameter(value), nil
	default:
		return JobParameter{}, fmt.Errorf("unknown parameter type %q", typ)
	}
}

func LongParameter(v int64) JobParameter {
	return JobParameter{Type: ParameterTypeLong, Value: v, Identifying: true}
}

func StringParameter(v string) JobParameter {
	return JobParameter{Type: ParameterTypeString, Value: v, Identifying: true}
}

func DoubleParameter(v float64) JobParameter {
	return JobParameter{Type: ParameterTypeDouble, Value: v, Identifying: true}
}

func DateParameter(v time.Time) JobParameter {
	return JobParameter{Type: ParameterTypeDate, Value: v.UTC(), Identifying: true}
}

// String renders the value in a stable form used for instance keys.
func (p JobParameter) String() string {
	switch v := p.Value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return strconv.FormatInt(v.UnixMilli(), 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// JobParameters distinguishes one run instance of a job from another.
type JobParameters map[string]JobParameter

// Long returns the named parameter if it exists and is a LONG.
func (p JobParameters) Long(name string) (int64, bool) {
	param, ok := p[name]
	if !ok || param.Type != ParameterTypeLong {
		return 0, false
	}
	v, ok := param.Value.(int64)
	return v, ok
}

// Identifying returns the subset of parameters that define instance identity.
func (p JobParameters) Identifying() JobParameters {
	out := make(JobParameters, len(p))
	for k, v := range p {
		if v.Identifying {
			out[k] = v
		}
	}
	return out
}

// InstanceKey hashes the sorted identifying parameters. Two parameter sets
// with the same identifying entries yield the same key.
func (p JobParameters) InstanceKey() string {
	ident := p.Identifying()
	names := make([]string, 0, len(ident))
	for k := range ident {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		fmt.Fprintf(&b, "%s=%s;", k, ident[k].String())
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Values flattens parameters to their string form, for logs and payloads.
func (p JobParameters) Values() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v.String()
	}
	return out
}
