package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
)

func TestFor_AllKinds(t *testing.T) {
	for _, kind := range contracts.AllKinds {
		s, err := For(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, s.Kind)
		assert.NotEmpty(t, s.Columns)
	}

	_, err := For("bond_kline")
	assert.Error(t, err)
}

func TestFlowSchema_NineColumns(t *testing.T) {
	s := MustFor(contracts.KindMoneyFlow)
	assert.Equal(t, []string{
		"date", "code",
		"net_amount", "main_net", "super_net", "large_net", "medium_net", "small_net",
		"unit_scale",
	}, s.Names())

	scaled := 0
	for _, c := range s.Columns {
		if c.Scaled {
			scaled++
			assert.Equal(t, Float64, c.Type, c.Name)
			assert.Equal(t, ZeroFill, c.Missing, c.Name)
		}
	}
	assert.Equal(t, 6, scaled)
}

func TestMarketSchema_Precision(t *testing.T) {
	s := MustFor(contracts.KindStockKline)

	tests := []struct {
		name string
		want Type
	}{
		{"close", Float32},
		{"pctChg", Float32},
		{"adjustFactor", Float32},
		{"volume", Float64},
		{"amount", Float64},
		{"isST", Int8},
		{"date", Date},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := s.Column(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Type)
		})
	}

	c, _ := s.Column("close")
	assert.Equal(t, KeepNull, c.Missing)
	c, _ = s.Column("isST")
	assert.Equal(t, ZeroFill, c.Missing)
}

func TestSchema_TimeSeries(t *testing.T) {
	assert.True(t, MustFor(contracts.KindSectorKline).TimeSeries())
	assert.False(t, MustFor(contracts.KindSectorConstituents).TimeSeries())
}

func TestType_SQL(t *testing.T) {
	assert.Equal(t, "FLOAT", Float32.SQL())
	assert.Equal(t, "DOUBLE", Float64.SQL())
	assert.Equal(t, "TINYINT", Int8.SQL())
	assert.Equal(t, "INTEGER", Int32.SQL())
	assert.Equal(t, "VARCHAR", Date.SQL())
	assert.True(t, Int8.Numeric())
	assert.False(t, Date.Numeric())
}
