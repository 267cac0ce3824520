package inmemdb

import (
	"sync"

	"github.com/trezcool/balozi/core/application"
	"github.com/trezcool/balozi/core/chat"
	"github.com/trezcool/balozi/core/event"
	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
)

// DB holds all the in-memory tables. It backs DEV mode and the test
// suites; the Postgres repositories are the production storage.
type (
	DB struct {
		application  *applicationTable
		user         *userTable
		hours        *hoursTable
		event        *eventTable
		feed         *feedTable
		chat         *chatTable
		notification *notificationTable
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*application.Application // keyed by phone
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	hoursTable struct {
		sync.RWMutex
		table map[string]*hours.Entry
	}

	eventTable struct {
		sync.RWMutex
		table    map[string]*event.Event
		rsvps    map[string]map[string]*event.RSVP // eventID -> userID
		comments map[string][]*event.Comment       // eventID
	}

	feedTable struct {
		sync.RWMutex
		table    map[string]*feed.Post
		comments map[string][]*feed.Comment // postID
	}

	chatTable struct {
		sync.RWMutex
		table []*chat.Message // append-only, insertion order
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		application: &applicationTable{table: make(map[string]*application.Application)},
		user:        &userTable{table: make(map[string]*user.User)},
		hours:       &hoursTable{table: make(map[string]*hours.Entry)},
		event: &eventTable{
			table:    make(map[string]*event.Event),
			rsvps:    make(map[string]map[string]*event.RSVP),
			comments: make(map[string][]*event.Comment),
		},
		feed: &feedTable{
			table:    make(map[string]*feed.Post),
			comments: make(map[string][]*feed.Comment),
		},
		chat:         &chatTable{},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
