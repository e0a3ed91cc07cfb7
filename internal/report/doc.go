// Package report разбирает отчёты тестов, собранные из workspace.
//
// Поддерживается JUnit XML — формат, который пишут pytest
// (--junitxml), go-junit-report и большинство test runners.
package report
