package store

// TableName is the name of the evaluations table.
const TableName = "evaluations"

// Record is one evaluation: the scores, latency and identifiers of a single
// run of a model against a query/context pair.
type Record struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID      string  `gorm:"column:trace_id" json:"trace_id"`
	ModelName    string  `gorm:"column:model_name;index" json:"model_name"`
	SampleID     string  `gorm:"column:sample_id;index" json:"sample_id"`
	Query        string  `gorm:"column:query" json:"query"`
	Context      string  `gorm:"column:context" json:"context"`
	Faithfulness int     `gorm:"column:faithfulness" json:"faithfulness"`
	Relevance    int     `gorm:"column:relevance" json:"relevance"`
	Latency      float64 `gorm:"column:latency" json:"latency"`
	// CreatedAt is Unix seconds, set by the caller and never touched by the ORM.
	CreatedAt int64 `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
}

// TableName overrides the gorm default table name.
func (Record) TableName() string {
	return TableName
}
