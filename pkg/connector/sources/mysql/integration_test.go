package mysql_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/sources/mysql"
	"github.com/ajitpratap0/nebula-columnar/pkg/testutil"
	"github.com/ajitpratap0/nebula-columnar/pkg/transport/transports"
)

type mysqlIntegrationSuite struct {
	testutil.IntegrationTestSuite
	db    *sql.DB
	table string
}

func TestMySQLIntegration(t *testing.T) {
	s := &mysqlIntegrationSuite{}
	s.DSN = testutil.IntegrationDSN(t, testutil.MySQLDSNEnv)
	suite.Run(t, s)
}

func (s *mysqlIntegrationSuite) SetupSuite() {
	s.IntegrationTestSuite.SetupSuite()

	db, err := sql.Open("mysql", s.DSN)
	s.Require().NoError(err)
	s.db = db
	s.table = fmt.Sprintf("nebula_it_%d", time.Now().UnixNano())

	_, err = db.ExecContext(s.Context(), fmt.Sprintf(`CREATE TABLE %s (
		id INT NOT NULL,
		small TINYINT,
		big BIGINT UNSIGNED,
		name VARCHAR(64),
		price DECIMAL(10,2),
		created DATETIME(6),
		day DATE,
		span TIME,
		doc JSON
	)`, s.table))
	s.Require().NoError(err)

	for i := 1; i <= 50; i++ {
		_, err = db.ExecContext(s.Context(), fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table),
			i, i%100, uint64(i)*1000, fmt.Sprintf("name-%d", i), float64(i)*1.25,
			"2024-01-01 10:00:00.123456", "2024-02-29", "01:30:00", fmt.Sprintf(`{"i": %d}`, i))
		s.Require().NoError(err)
	}
	_, err = db.ExecContext(s.Context(), fmt.Sprintf(`INSERT INTO %s (id) VALUES (0)`, s.table))
	s.Require().NoError(err)
}

func (s *mysqlIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_, _ = s.db.ExecContext(s.Context(), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table))
		s.db.Close()
	}
	s.IntegrationTestSuite.TearDownSuite()
}

func (s *mysqlIntegrationSuite) TestSchemaDiscovery() {
	src, err := mysql.NewMySQLSource(mysql.Config{
		DSN:     s.DSN,
		Queries: []string{fmt.Sprintf("SELECT * FROM %s", s.table)},
	}, testutil.TestLogger(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(src.Prepare(s.Context()))
	defer src.Close(s.Context())

	var got []mysql.Type
	for _, c := range src.Schema().Columns() {
		got = append(got, c.Type)
	}
	s.Equal([]mysql.Type{
		mysql.Long, mysql.Tiny, mysql.UInt64, mysql.VarChar, mysql.Decimal,
		mysql.Datetime, mysql.Date, mysql.Time, mysql.JSON,
	}, got)
	s.False(src.Schema().Columns()[0].Nullable)

	rows := testutil.ReadPartition(s.Context(), s.T(), src.Partitions()[0])
	s.Len(rows, 51)
}

func (s *mysqlIntegrationSuite) TestTransfer() {
	t := s.T()
	src, err := mysql.NewMySQLSource(mysql.Config{
		DSN: s.DSN,
		Queries: []string{
			fmt.Sprintf("SELECT * FROM %s WHERE id < 25", s.table),
			fmt.Sprintf("SELECT * FROM %s WHERE id >= 25", s.table),
		},
	}, testutil.TestLogger(t))
	s.Require().NoError(err)

	d := pipeline.NewDispatcher(src, transports.MySQLArrow, pipeline.Config{
		BatchSize: 10,
		Allocator: testutil.CheckedAllocator(t),
	}, testutil.TestLogger(t))

	res, err := d.Run(s.Context())
	s.Require().NoError(err)
	defer res.Release()

	s.Equal(int64(51), res.Rows)
	s.Equal(arrow.INT64, res.Schema.Field(2).Type.ID())
	s.Equal(arrow.TIME64, res.Schema.Field(7).Type.ID())

	var sum int64
	for _, rec := range res.Records {
		ids := rec.Column(0).(*array.Int32)
		for i := 0; i < ids.Len(); i++ {
			sum += int64(ids.Value(i))
		}
	}
	s.Equal(int64(1275), sum)
}
