package pagination

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ id snowflake.ID }

func rows(ids ...int64) []*row {
	out := make([]*row, 0, len(ids))
	for _, id := range ids {
		out = append(out, &row{id: snowflake.ID(id)})
	}
	return out
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 20, Pagination{}.Limit(20, 250))
	assert.Equal(t, 20, Pagination{PageSize: -3}.Limit(20, 250))
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit(20, 250))
	assert.Equal(t, 250, Pagination{PageSize: 1000}.Limit(20, 250))
}

func TestBefore(t *testing.T) {
	id, err := Pagination{PageToken: "  "}.Before()
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = Pagination{PageToken: EncodeToken(snowflake.ID(1790000000000000001))}.Before()
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, snowflake.ID(1790000000000000001), *id)

	for _, token := range []string{"%%%", "not-a-cursor", EncodeToken(0)} {
		_, err := Pagination{PageToken: token}.Before()
		assert.ErrorIs(t, err, ErrInvalidPageToken, token)
	}
}

func TestTokensAreURLSafe(t *testing.T) {
	token := EncodeToken(snowflake.ID(1790000000000000001))
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
}

func TestTrim(t *testing.T) {
	id := func(r *row) snowflake.ID { return r.id }

	items, info := Trim(rows(9, 8, 7), 2, id)
	require.Len(t, items, 2)
	assert.True(t, info.HasMore)
	next, err := DecodeToken(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(8), next)

	items, info = Trim(rows(9, 8), 2, id)
	assert.Len(t, items, 2)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	items, info = Trim(nil, 2, id)
	assert.Empty(t, items)
	assert.False(t, info.HasMore)
}
