package memory

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

var sampleEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SampleSchema is the schema of Sample.
func SampleSchema() Schema {
	schema, err := typesystem.NewSchema(
		[]string{"id", "name", "active", "score", "created_at", "day", "payload"},
		[]typesystem.Column[Type]{
			typesystem.NotNull(Int64),
			typesystem.Nullable(String),
			typesystem.NotNull(Bool),
			typesystem.Nullable(Float64),
			typesystem.NotNull(Timestamp),
			typesystem.NotNull(Date),
			typesystem.Nullable(Bytes),
		},
	)
	if err != nil {
		panic(err)
	}
	return schema
}

// Sample returns a deterministic source of the given shape. Every seventh
// row has its nullable cells set to nil.
func Sample(partitions, rowsPerPartition int) *Source {
	parts := make([]Rows, partitions)
	for p := range parts {
		rows := make(Rows, rowsPerPartition)
		for r := range rows {
			id := int64(p*rowsPerPartition + r)
			at := sampleEpoch.Add(time.Duration(id) * time.Minute)
			row := []any{
				id,
				fmt.Sprintf("row-%d", id),
				id%2 == 0,
				float64(id) / 4,
				at,
				at.Truncate(24 * time.Hour),
				[]byte{byte(id), byte(id >> 8)},
			}
			if id%7 == 0 {
				row[1], row[3], row[6] = nil, nil, nil
			}
			rows[r] = row
		}
		parts[p] = rows
	}
	return MustSource(SampleSchema(), parts...)
}
