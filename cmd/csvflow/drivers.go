package main

// Database drivers the CLI can speak out of the box. The library layers
// only depend on database/sql; adding a driver here is all it takes to
// support another engine.
import (
	_ "github.com/godror/godror"      // oracle
	_ "github.com/jackc/pgx/v5/stdlib" // pgx (postgres)
)
