package main

import (
	"database/sql"

	"github.com/trezcool/shule/storage/database"
)

var migrateRunFunc = func(db *sql.DB, command string, args ...string) error { // mockable
	return database.RunMigrationCommand(db, command, args...)
}

func (cli *commandLine) migrate(args []string) error {
	return migrateRunFunc(cli.db, args[0], args[1:]...)
}
