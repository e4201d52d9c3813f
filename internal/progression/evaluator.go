// Package progression derives what a learner may open in a course from two
// fact sets: completed lessons and passed quizzes. It keeps no state; callers
// re-evaluate whenever either set changes.
package progression

// IDSet is a set of row ids.
type IDSet map[uint]struct{}

func NewIDSet(ids ...uint) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// Module is the view of a module needed for gating, in course order.
type Module struct {
	ID        uint
	LessonIDs []uint
	QuizID    *uint
}

type Facts struct {
	CompletedLessons IDSet
	PassedQuizzes    IDSet
}

// IsModuleComplete: a module with a quiz is complete when the quiz is passed;
// otherwise when all of its lessons are completed.
func IsModuleComplete(m Module, f Facts) bool {
	if m.QuizID != nil {
		return f.PassedQuizzes.Has(*m.QuizID)
	}
	for _, id := range m.LessonIDs {
		if !f.CompletedLessons.Has(id) {
			return false
		}
	}
	return true
}

// IsModuleUnlocked: the first module is always open, every other one opens
// when its predecessor is complete.
func IsModuleUnlocked(modules []Module, idx int, f Facts) bool {
	if idx < 0 || idx >= len(modules) {
		return false
	}
	if idx == 0 {
		return true
	}
	return IsModuleComplete(modules[idx-1], f)
}

// IsCourseAssessmentUnlocked requires every module to be complete.
func IsCourseAssessmentUnlocked(modules []Module, f Facts) bool {
	for _, m := range modules {
		if !IsModuleComplete(m, f) {
			return false
		}
	}
	return true
}

type ModuleStatus struct {
	ModuleID uint `json:"moduleId"`
	Unlocked bool `json:"unlocked"`
	Complete bool `json:"complete"`
}

type Snapshot struct {
	Modules            []ModuleStatus `json:"modules"`
	AssessmentUnlocked bool           `json:"assessmentUnlocked"`
}

func Evaluate(modules []Module, f Facts) Snapshot {
	snap := Snapshot{Modules: make([]ModuleStatus, len(modules))}
	for i, m := range modules {
		snap.Modules[i] = ModuleStatus{
			ModuleID: m.ID,
			Unlocked: IsModuleUnlocked(modules, i, f),
			Complete: IsModuleComplete(m, f),
		}
	}
	snap.AssessmentUnlocked = IsCourseAssessmentUnlocked(modules, f)
	return snap
}

// Unlocked looks up a module's status by id.
func (s Snapshot) Unlocked(moduleID uint) bool {
	for _, m := range s.Modules {
		if m.ModuleID == moduleID {
			return m.Unlocked
		}
	}
	return false
}
