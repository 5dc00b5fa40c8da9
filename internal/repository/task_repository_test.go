package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-rewards-api/internal/models"
)

var taskRowColumns = []string{"id", "name", "description", "branches", "hours", "category", "difficulty", "faculty_id", "slot", "slots_left", "created_at"}

func TestTaskRepositoryCreateInitialisesSlots(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(sqlmock.AnyArg(), "Lab cleanup", "Tidy the lab", sqlmock.AnyArg(), sqlmock.AnyArg(), "service", sqlmock.AnyArg(), "faculty-1", 3, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	task := &models.Task{
		Name:        "Lab cleanup",
		Description: "Tidy the lab",
		Branches:    pq.StringArray{"CSE"},
		Hours:       decimal.NewFromInt(2),
		Category:    "service",
		Difficulty:  decimal.NewFromInt(1),
		FacultyID:   "faculty-1",
		Slot:        3,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, 3, task.SlotsLeft)
}

func TestTaskRepositoryListEligible(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	rows := sqlmock.NewRows(taskRowColumns).
		AddRow("task-1", "Lab cleanup", "Tidy the lab", "{CSE,ECE}", "10", "service", "2", "faculty-1", 3, 2, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE $1 = ANY(t.branches)")).
		WithArgs("CSE", "student-1").
		WillReturnRows(rows)

	tasks, err := repo.ListEligible(context.Background(), "CSE", "student-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, []string{"CSE", "ECE"}, []string(tasks[0].Branches))
	assert.True(t, tasks[0].Hours.Equal(decimal.NewFromInt(10)))
}

func TestDecrementTaskSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks SET slots_left = slots_left - 1")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"slot", "slots_left"}).AddRow(3, 2))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks SET slots_left = slots_left - 1")).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"slot", "slots_left"}))

	claim, err := decrementTaskSlot(context.Background(), db, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, claim.Ordinal())

	_, err = decrementTaskSlot(context.Background(), db, "task-1")
	require.ErrorIs(t, err, ErrSlotsExhausted)
}
