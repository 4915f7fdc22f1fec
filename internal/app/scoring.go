package app

import (
	"math"

	"quizhub-service/internal/domain"
)

// Score judges a submission against a quiz. It is pure and total: missing
// or malformed entries count as no selection.
func Score(quiz domain.Quiz, submission []domain.Selection) domain.Score {
	result := domain.Score{PerQuestion: make([]bool, len(quiz.Questions))}
	for i, question := range quiz.Questions {
		selection := domain.None()
		if i < len(submission) {
			selection = submission[i]
		}
		if questionCorrect(quiz, question, selection) {
			result.PerQuestion[i] = true
			result.CorrectCount++
		}
	}
	result.Percentage = Percent(result.CorrectCount, len(quiz.Questions))
	return result
}

// Percent rounds 100*correct/total, and is 0 for an empty quiz.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func questionCorrect(quiz domain.Quiz, question domain.Question, selection domain.Selection) bool {
	selected := resolveSelection(question, selection)
	if len(selected) == 0 {
		return false
	}
	correct := correctSet(question)

	switch {
	case quiz.RequireAllCorrect:
		if len(selected) != len(correct) {
			return false
		}
		return subset(selected, correct)
	case quiz.AllowMultipleCorrect:
		// Partial picks count; any wrong pick fails the question.
		return subset(selected, correct)
	default:
		if len(selected) != 1 {
			return false
		}
		return subset(selected, correct)
	}
}

// resolveSelection maps submitted tokens to answer ids. A token that is not
// an answer id is matched against answer labels for text-keyed clients.
func resolveSelection(question domain.Question, selection domain.Selection) map[string]struct{} {
	tokens := selection.Set()
	resolved := make(map[string]struct{}, len(tokens))
	for token := range tokens {
		resolved[resolveToken(question, token)] = struct{}{}
	}
	return resolved
}

func resolveToken(question domain.Question, token string) string {
	for _, a := range question.Answers {
		if a.ID == token {
			return a.ID
		}
	}
	for _, a := range question.Answers {
		if a.Label == token {
			return a.ID
		}
	}
	// Unknown token: keep it so it counts as a wrong pick.
	return "\x00" + token
}

func correctSet(question domain.Question) map[string]struct{} {
	set := make(map[string]struct{})
	for _, a := range question.Answers {
		if a.IsCorrect {
			set[a.ID] = struct{}{}
		}
	}
	return set
}

func subset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// AnswerKeyChanged reports whether attempts scored against oldQuestions are
// no longer comparable with newQuestions. Callers use it to decide whether to
// clear attempt history; nothing here clears anything.
func AnswerKeyChanged(oldQuestions, newQuestions []domain.Question) bool {
	if len(oldQuestions) != len(newQuestions) {
		return true
	}
	for i := range oldQuestions {
		if oldQuestions[i].ID != newQuestions[i].ID {
			return true
		}
		if !sameKey(answerKey(oldQuestions[i]), answerKey(newQuestions[i])) {
			return true
		}
	}
	return false
}

// answerKey holds both ids and labels of the correct answers since either can
// be used to submit.
func answerKey(question domain.Question) map[string]struct{} {
	key := make(map[string]struct{})
	for _, a := range question.Answers {
		if a.IsCorrect {
			key["id:"+a.ID] = struct{}{}
			key["label:"+a.Label] = struct{}{}
		}
	}
	return key
}

func sameKey(a, b map[string]struct{}) bool {
	return len(a) == len(b) && subset(a, b)
}
