package inmemdb

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
)

// DB is an in-memory store with the same constraints as the postgres schema:
// unique natural keys per school and cascading parent/student links.
type DB struct {
	mutex sync.RWMutex
	seq   int

	schools  map[string]*record
	admins   map[string]*record
	parents  map[string]*record
	students map[string]*record
	links    map[link]bool
	reports  map[string]importer.Report
}

type (
	// record keeps insertion order so that queries are deterministic.
	record struct {
		seq   int
		value interface{}
	}

	link struct {
		parentID  string
		studentID string
	}
)

func Open() *DB {
	return &DB{
		schools:  make(map[string]*record),
		admins:   make(map[string]*record),
		parents:  make(map[string]*record),
		students: make(map[string]*record),
		links:    make(map[link]bool),
		reports:  make(map[string]importer.Report),
	}
}

// Repositories returns all the school repositories backed by db.
func (db *DB) Repositories() school.Repositories {
	return school.Repositories{
		Schools:  NewSchoolRepository(db),
		Admins:   NewAdminRepository(db),
		Parents:  NewParentRepository(db),
		Students: NewStudentRepository(db),
	}
}

// Reset drops everything; used between tests.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.schools = make(map[string]*record)
	db.admins = make(map[string]*record)
	db.parents = make(map[string]*record)
	db.students = make(map[string]*record)
	db.links = make(map[link]bool)
	db.reports = make(map[string]importer.Report)
}

// insert must be called with the write lock held.
func (db *DB) insert(table map[string]*record, value interface{}) string {
	db.seq++
	id := uuid.New().String()
	table[id] = &record{seq: db.seq, value: value}
	return id
}

// sorted returns the records of table in insertion order. Must be called with a lock held.
func sorted(table map[string]*record) []*record {
	recs := make([]*record, 0, len(table))
	for _, r := range table {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return recs
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
