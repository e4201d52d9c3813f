package service

import (
	"fmt"

	"coursecraft_backend/internal/model"

	"gorm.io/gorm"
)

// Deletion cascades. Each step removes one table's rows and the chain stops at
// the first failure; callers run them inside a transaction so a failed step
// rolls back the ones before it. Children always go before their parents.

type cascadeStep struct {
	name string
	run  func(tx *gorm.DB) *gorm.DB
}

func runCascade(tx *gorm.DB, steps []cascadeStep) error {
	for _, st := range steps {
		if err := st.run(tx).Error; err != nil {
			return fmt.Errorf("delete %s: %w", st.name, err)
		}
	}
	return nil
}

// quizTreeSteps removes everything hanging off the quizzes selected by quizIDs.
func quizTreeSteps(quizIDs func(tx *gorm.DB) *gorm.DB) []cascadeStep {
	questionIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Question{}).Select("id").Where("quiz_id IN (?)", quizIDs(tx))
	}
	attemptIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Attempt{}).Select("id").Where("quiz_id IN (?)", quizIDs(tx))
	}
	return []cascadeStep{
		{"responses", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("attempt_id IN (?)", attemptIDs(tx)).Delete(&model.Response{})
		}},
		{"attempts", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("quiz_id IN (?)", quizIDs(tx)).Delete(&model.Attempt{})
		}},
		{"options", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("question_id IN (?)", questionIDs(tx)).Delete(&model.Option{})
		}},
		{"questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("quiz_id IN (?)", quizIDs(tx)).Delete(&model.Question{})
		}},
	}
}

// deleteCourseTree: quiz history, options, questions, quizzes, completions,
// lessons, modules, enrollments, course.
func deleteCourseTree(tx *gorm.DB, courseID uint) error {
	quizIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Quiz{}).Select("id").Where("course_id = ?", courseID)
	}
	moduleIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Module{}).Select("id").Where("course_id = ?", courseID)
	}
	lessonIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Lesson{}).Select("id").Where("module_id IN (?)", moduleIDs(tx))
	}

	steps := quizTreeSteps(quizIDs)
	steps = append(steps,
		cascadeStep{"quizzes", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("course_id = ?", courseID).Delete(&model.Quiz{})
		}},
		cascadeStep{"lesson completions", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("lesson_id IN (?)", lessonIDs(tx)).Delete(&model.LessonCompletion{})
		}},
		cascadeStep{"lessons", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("module_id IN (?)", moduleIDs(tx)).Delete(&model.Lesson{})
		}},
		cascadeStep{"modules", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("course_id = ?", courseID).Delete(&model.Module{})
		}},
		cascadeStep{"enrollments", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("course_id = ?", courseID).Delete(&model.Enrollment{})
		}},
		cascadeStep{"course", func(tx *gorm.DB) *gorm.DB {
			return tx.Delete(&model.Course{}, courseID)
		}},
	)
	return runCascade(tx, steps)
}

// deleteModuleContents removes a module's quiz tree, lessons and their
// completions. The module row itself is removed by the ordering manager.
func deleteModuleContents(tx *gorm.DB, moduleID uint) error {
	quizIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Quiz{}).Select("id").Where("module_id = ?", moduleID)
	}
	lessonIDs := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Lesson{}).Select("id").Where("module_id = ?", moduleID)
	}
	steps := quizTreeSteps(quizIDs)
	steps = append(steps,
		cascadeStep{"quizzes", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("module_id = ?", moduleID).Delete(&model.Quiz{})
		}},
		cascadeStep{"lesson completions", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("lesson_id IN (?)", lessonIDs(tx)).Delete(&model.LessonCompletion{})
		}},
		cascadeStep{"lessons", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("module_id = ?", moduleID).Delete(&model.Lesson{})
		}},
	)
	return runCascade(tx, steps)
}
