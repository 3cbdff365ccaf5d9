package finder_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/theplant/finder"
)

func TestInputParamJSON(t *testing.T) {
	t.Run("page number round trip", func(t *testing.T) {
		in := finder.InputParam{
			Paging: finder.NewPageNumberPagination(2, 20),
			FilterSet: finder.AllOf(
				finder.Where("Age", finder.OperatorGreaterThan, 18).Or(finder.Where("Name", finder.OperatorStartsWith, "a")),
			),
			Joins:   []string{"Orders"},
			OrderBy: []finder.Order{finder.Desc("Age")},
		}
		b, err := json.Marshal(in)
		require.NoError(t, err)
		require.Equal(t, "pageNumber", gjson.GetBytes(b, "paging.type").String())
		require.Equal(t, int64(20), gjson.GetBytes(b, "paging.pageSize").Int())

		var out finder.InputParam
		require.NoError(t, json.Unmarshal(b, &out))
		require.Equal(t, in.Paging, out.Paging)
		require.Equal(t, in.Joins, out.Joins)
		require.Equal(t, in.OrderBy, out.OrderBy)
		require.Len(t, out.FilterSet.Filters, 1)
		require.Equal(t, finder.LogicOr, out.FilterSet.Filters[0].Logic)
		require.Equal(t, "Name", out.FilterSet.Filters[0].NextFilter.Field)
	})

	t.Run("infinite", func(t *testing.T) {
		b := []byte(`{"paging":{"type":"infinite","firstItemId":5,"pageSize":20},"filterSet":{}}`)
		var out finder.InputParam
		require.NoError(t, json.Unmarshal(b, &out))
		require.Equal(t, &finder.InfinitePagination{
			FirstItemID: 5,
			PageSize:    20,
			TotalCount:  finder.UnknownTotalCount,
		}, out.Paging)
	})

	t.Run("no paging", func(t *testing.T) {
		var out finder.InputParam
		require.NoError(t, json.Unmarshal([]byte(`{"filterSet":{},"paging":null}`), &out))
		require.Nil(t, out.Paging)
	})

	t.Run("unknown paging type", func(t *testing.T) {
		var out finder.InputParam
		err := json.Unmarshal([]byte(`{"paging":{"type":"cursor"}}`), &out)
		require.ErrorContains(t, err, `unknown pagination type "cursor"`)
	})

	t.Run("large ids stay exact", func(t *testing.T) {
		var out finder.InputParam
		b := []byte(`{"filterSet":{"filters":[{"field":"ID","operator":"Equal","value":9007199254740993}]}}`)
		require.NoError(t, json.Unmarshal(b, &out))
		require.Equal(t, json.Number("9007199254740993"), out.FilterSet.Filters[0].Value)
	})
}

func TestOutputParamJSON(t *testing.T) {
	type row struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	out := finder.OutputParam[row]{
		InputParam: finder.InputParam{Paging: &finder.PageNumberPagination{PageNumber: 1, PageSize: 2, TotalCount: 5}},
		Result:     []row{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
	}
	b, err := json.Marshal(out)
	require.NoError(t, err)
	require.Equal(t, int64(5), gjson.GetBytes(b, "paging.totalCount").Int())
	require.Equal(t, "b", gjson.GetBytes(b, "result.1.name").String())

	var decoded finder.OutputParam[row]
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, out.Result, decoded.Result)
	require.Equal(t, 5, decoded.Paging.Total())

	empty, err := json.Marshal(finder.OutputParam[row]{})
	require.NoError(t, err)
	require.Equal(t, "[]", gjson.GetBytes(empty, "result").Raw)
}
