// Package inmemdb implements the core repositories in memory, for tests.
package inmemdb

import (
	"strings"
	"sync"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/billing"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/voucher"
)

type DB struct {
	mu sync.RWMutex

	users         map[string]*user.User
	students      map[string]*student.Student
	classes       map[string]*class.Class
	enrollments   map[string]*student.Enrollment // key: studentID + "/" + classID
	fees          map[string]*billing.Fee
	vouchers      map[string]*voucher.Voucher
	notifications map[string]*notification.Notification
	mail          []core.MailRequest
}

func NewDB() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		students:      make(map[string]*student.Student),
		classes:       make(map[string]*class.Class),
		enrollments:   make(map[string]*student.Enrollment),
		fees:          make(map[string]*billing.Fee),
		vouchers:      make(map[string]*voucher.Voucher),
		notifications: make(map[string]*notification.Notification),
	}
}

func enrollmentKey(studentID, classID string) string {
	return studentID + "/" + classID
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
