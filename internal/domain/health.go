package domain

// TableState classifies one warehouse table's freshness against an expected
// processing unit.
type TableState string

const (
	TableStateOK      TableState = "OK"
	TableStateStale   TableState = "STALE"
	TableStateEmpty   TableState = "EMPTY"
	TableStateUnknown TableState = "UNKNOWN"
	TableStateError   TableState = "ERROR"
)

// TableStatus is the computed freshness of one table. MaxUnit is nil for an
// empty table.
type TableStatus struct {
	Table    string     `json:"table"`
	Core     bool       `json:"core"`
	MaxUnit  *Unit      `json:"max_unit,omitempty"`
	RowCount int64      `json:"row_count"`
	State    TableState `json:"state"`
	Detail   string     `json:"detail,omitempty"`
}

// LayerStatus aggregates table statuses for one pipeline layer. A layer is
// healthy iff every core table is OK; optional tables downgrade the report
// but never fail the layer. ReadyForNext means the layer's watermark has
// reached the expected unit, so the layer above may run.
type LayerStatus struct {
	Layer        string        `json:"layer"`
	Stream       string        `json:"stream"`
	ExpectedUnit *Unit         `json:"expected_unit,omitempty"`
	WaterMark    *Unit         `json:"water_mark,omitempty"`
	Tables       []TableStatus `json:"tables"`
	IsHealthy    bool          `json:"is_healthy"`
	ReadyForNext bool          `json:"ready_for_next"`
}

// PipelineStatus is the conjunction across all layers.
type PipelineStatus struct {
	Layers    []LayerStatus `json:"layers"`
	IsHealthy bool          `json:"is_healthy"`
	IsReady   bool          `json:"is_ready"`
	Summary   string        `json:"summary"`
}
