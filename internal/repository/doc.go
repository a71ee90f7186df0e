// Package repository holds the typed Postgres queries used by the services.
// Everything except this file is generated by sqlc from queries/*.sql and
// the goose migrations; edit the SQL and regenerate.
package repository

//go:generate sqlc generate -f ../../sqlc.yaml
