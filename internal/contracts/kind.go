package contracts

import "fmt"

// Kind identifies a dataset kind. The value doubles as the artifact prefix:
// {kind}_{year}.parquet
// ⭐ SSOT: 데이터셋 종류는 여기서만 정의
type Kind string

const (
	KindStockKline         Kind = "stock_kline"
	KindMoneyFlow          Kind = "stock_money_flow"
	KindSectorKline        Kind = "sector_kline"
	KindSectorConstituents Kind = "sector_constituents"
)

// PartitionedKinds are the time-series kinds split by calendar year
var PartitionedKinds = []Kind{KindStockKline, KindMoneyFlow, KindSectorKline}

// AllKinds lists every kind in pipeline order
var AllKinds = []Kind{KindStockKline, KindMoneyFlow, KindSectorKline, KindSectorConstituents}

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dataset kind %q", s)
}

// ArtifactName returns the logical name of the year-scoped artifact
func (k Kind) ArtifactName(year int) string {
	return fmt.Sprintf("%s_%d", k, year)
}

// FileName returns the parquet file name of the year-scoped artifact
func (k Kind) FileName(year int) string {
	return k.ArtifactName(year) + ".parquet"
}

// SectorType is the discriminator of a sector index
type SectorType string

const (
	SectorIndustry SectorType = "industry"
	SectorConcept  SectorType = "concept"
	SectorRegion   SectorType = "region"
)
