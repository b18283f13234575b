package models

import (
	"log"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Permit{}, &PermitChangeRecord{},
		&Attachment{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
