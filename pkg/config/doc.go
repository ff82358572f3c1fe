// Package config provides the configuration of a columnar transfer.
//
// A single TransferConfig describes a transfer end to end:
//
//   - Source: source kind, DSN and one query per partition
//   - Transfer: batch row capacity, data order, timeout and progress interval
//   - Output: columnar format, compression and a local or s3:// path
//   - Observability: log level and encoding, metrics listen address
//
// # Usage
//
//	cfg := config.NewTransferConfig("orders")
//	if err := config.Load("transfer.yaml", cfg); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Substitution
//
//	# transfer.yaml
//	source:
//	  kind: postgresql
//	  dsn: postgres://etl:${PG_PASSWORD}@db:5432/shop
//	  queries:
//	    - SELECT * FROM orders WHERE id % 2 = 0
//	    - SELECT * FROM orders WHERE id % 2 = 1
//	output:
//	  path: s3://lake/orders.parquet
//
// The command line layers flags and NEBULA_* variables over the file with
// viper; this package only deals with the file and the structure.
package config
