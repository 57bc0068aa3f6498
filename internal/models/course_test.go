package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoModuleOutline() *CourseOutline {
	return &CourseOutline{CourseID: "c1", Lessons: []Lesson{
		{ID: "a1", ModuleID: "mA", ModuleOrder: 1, Order: 1},
		{ID: "a2", ModuleID: "mA", ModuleOrder: 1, Order: 2},
		{ID: "b1", ModuleID: "mB", ModuleOrder: 2, Order: 1, IsLocked: true},
		{ID: "b2", ModuleID: "mB", ModuleOrder: 2, Order: 2},
	}}
}

func TestCourseOutlineNextUnlockedSkipsLocked(t *testing.T) {
	outline := twoModuleOutline()

	next := outline.NextUnlocked("a2")
	require.NotNil(t, next)
	assert.Equal(t, "b2", next.ID)
	assert.Equal(t, "a2", outline.NextUnlocked("a1").ID)
	assert.Nil(t, outline.NextUnlocked("b2"))
	assert.Nil(t, outline.NextUnlocked("missing"))
}

func TestCourseOutlineIsLastAndModules(t *testing.T) {
	outline := twoModuleOutline()

	assert.True(t, outline.IsLast("b2"))
	assert.False(t, outline.IsLast("a2"))
	assert.Equal(t, 4, outline.Total())

	modules := outline.Modules()
	require.Len(t, modules, 2)
	assert.Len(t, modules[0].Lessons, 2)
	assert.Equal(t, "mB", modules[1].ID)
}

func TestProgressCountPercentRounds(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 4, 0},
		{3, 4, 75},
		{4, 4, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{0, 0, 0},
		{5, 4, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ProgressCount{Completed: tc.completed, Total: tc.total}.Percent(), "%d/%d", tc.completed, tc.total)
	}
}

func TestEnrollmentStatusTransitions(t *testing.T) {
	assert.True(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusApproved))
	assert.True(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusRejected))
	assert.True(t, EnrollmentStatusApproved.CanTransitionTo(EnrollmentStatusCancelled))
	assert.False(t, EnrollmentStatusPending.CanTransitionTo(EnrollmentStatusCancelled))
	assert.False(t, EnrollmentStatusRejected.CanTransitionTo(EnrollmentStatusApproved))
	assert.False(t, EnrollmentStatusCancelled.CanTransitionTo(EnrollmentStatusApproved))
	assert.False(t, EnrollmentStatusApproved.CanTransitionTo(EnrollmentStatusPending))
	assert.True(t, EnrollmentStatusApproved.Open())
	assert.False(t, EnrollmentStatusRejected.Open())
}
