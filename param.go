package finder

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UseNumber keeps filter values like large ids exact until they are coerced.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// InputParam is the request envelope of a query.
type InputParam struct {
	Paging    Pagination `json:"paging,omitempty"`
	FilterSet FilterSet  `json:"filterSet"`
	Joins     []string   `json:"joins,omitempty"`
	OrderBy   []Order    `json:"orderBy,omitempty"`
}

// OutputParam is the response envelope, Paging carries the total count when it was computed.
type OutputParam[T any] struct {
	InputParam
	Result []T `json:"result"`
}

type inputParamJSON struct {
	Paging    jsoniter.RawMessage `json:"paging,omitempty"`
	FilterSet FilterSet           `json:"filterSet"`
	Joins     []string            `json:"joins,omitempty"`
	OrderBy   []Order             `json:"orderBy,omitempty"`
}

func (p InputParam) MarshalJSON() ([]byte, error) {
	v := inputParamJSON{
		FilterSet: p.FilterSet,
		Joins:     p.Joins,
		OrderBy:   p.OrderBy,
	}
	if p.Paging != nil {
		b, err := MarshalPagination(p.Paging)
		if err != nil {
			return nil, err
		}
		v.Paging = b
	}
	return jsonAPI.Marshal(v)
}

func (p *InputParam) UnmarshalJSON(data []byte) error {
	var v inputParamJSON
	if err := jsonAPI.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "unmarshal input param")
	}
	paging, err := UnmarshalPagination(v.Paging)
	if err != nil {
		return err
	}
	*p = InputParam{
		Paging:    paging,
		FilterSet: v.FilterSet,
		Joins:     v.Joins,
		OrderBy:   v.OrderBy,
	}
	return nil
}

func (p OutputParam[T]) MarshalJSON() ([]byte, error) {
	b, err := p.InputParam.MarshalJSON()
	if err != nil {
		return nil, err
	}
	result := p.Result
	if result == nil {
		result = []T{}
	}
	rb, err := jsonAPI.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "marshal result")
	}
	return sjson.SetRawBytes(b, "result", rb)
}

func (p *OutputParam[T]) UnmarshalJSON(data []byte) error {
	if err := p.InputParam.UnmarshalJSON(data); err != nil {
		return err
	}
	p.Result = nil
	if raw := gjson.GetBytes(data, "result"); raw.Exists() {
		if err := jsonAPI.UnmarshalFromString(raw.Raw, &p.Result); err != nil {
			return errors.Wrap(err, "unmarshal result")
		}
	}
	return nil
}

// MarshalPagination encodes the pagination with a "type" field naming its kind.
func MarshalPagination(paging Pagination) ([]byte, error) {
	b, err := jsonAPI.Marshal(paging)
	if err != nil {
		return nil, errors.Wrap(err, "marshal paging")
	}
	b, err = sjson.SetBytes(b, "type", string(paging.Kind()))
	if err != nil {
		return nil, errors.Wrap(err, "tag paging")
	}
	return b, nil
}

// UnmarshalPagination decodes what MarshalPagination produced, empty input yields nil.
func UnmarshalPagination(data []byte) (Pagination, error) {
	if len(data) == 0 || gjson.ParseBytes(data).Type == gjson.Null {
		return nil, nil
	}
	var paging Pagination
	switch kind := PaginationKind(gjson.GetBytes(data, "type").String()); kind {
	case PaginationKindPageNumber:
		paging = &PageNumberPagination{TotalCount: UnknownTotalCount}
	case PaginationKindInfinite:
		paging = &InfinitePagination{TotalCount: UnknownTotalCount}
	default:
		return nil, errors.Errorf("unknown pagination type %q", kind)
	}
	if err := jsonAPI.Unmarshal(data, paging); err != nil {
		return nil, errors.Wrap(err, "unmarshal paging")
	}
	return paging, nil
}
