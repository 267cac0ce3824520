package main

import (
	"github.com/trezcool/balozi/storage/database"
)

func (cli *commandLine) migrate() error {
	return database.Migrate(cli.db)
}
