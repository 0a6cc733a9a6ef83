package inmemdb

import (
	"sync"
	"time"

	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/wizard"
)

type (
	// DB is an in-memory stand-in for the relational database, used in tests and local development.
	DB struct {
		account     *accountTable
		application *applicationTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*account.Account
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*application.Application
		files map[string]map[wizard.AttachmentField]wizard.Attachment // {appID: {field: file}}
	}
)

func Open() *DB {
	return &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
		application: &applicationTable{
			table: make(map[string]*application.Application),
			files: make(map[string]map[wizard.AttachmentField]wizard.Attachment),
		},
	}
}

// nowFunc is mockable
var nowFunc = time.Now
