package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csv610/sophoset/internal/errors"
)

func builtinSources() []Source {
	return []Source{
		{Name: "mmlu", Hub: "cais/mmlu", Mapper: MapMMLU},
		{Name: "ai2_arc", Hub: "allenai/ai2_arc", Mapper: MapAI2ARC},
		{Name: "gsm8k", Hub: "openai/gsm8k", Mapper: MapGSM8K},
		{Name: "medmcqa", Hub: "openlifescienceai/medmcqa", Mapper: MapMedMCQA},
		{Name: "winogrande", Hub: "allenai/winogrande", Mapper: MapWinogrande},
		{Name: "mathvista", Hub: "AI4Math/MathVista", Vision: true, Mapper: MapMathVista},
	}
}

// Raw field accessors. Rows decoded from JSON carry numbers as float64
// and lists as []any, so every accessor accepts both the decoded and
// the native Go form.

func rawString(row Raw, field string) (string, error) {
	v, ok := row[field]
	if !ok {
		return "", errors.Wrapf(errors.ErrMissingField, "%q", field)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	default:
		return "", errors.Wrapf(errors.ErrMissingField, "%q: unexpected type %T", field, v)
	}
}

func rawOptionalString(row Raw, field string) string {
	s, err := rawString(row, field)
	if err != nil {
		return ""
	}
	return s
}

func rawStringSlice(row Raw, field string) ([]string, error) {
	v, ok := row[field]
	if !ok {
		return nil, errors.Wrapf(errors.ErrMissingField, "%q", field)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Wrapf(errors.ErrMissingField,
					"%q[%d]: unexpected type %T", field, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(errors.ErrMissingField, "%q: unexpected type %T", field, v)
	}
}

func rawInt(row Raw, field string) (int, error) {
	v, ok := row[field]
	if !ok {
		return 0, errors.Wrapf(errors.ErrMissingField, "%q", field)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errors.Wrapf(errors.ErrMissingField, "%q: %v", field, err)
		}
		return i, nil
	default:
		return 0, errors.Wrapf(errors.ErrMissingField, "%q: unexpected type %T", field, v)
	}
}

func rawMap(row Raw, field string) (Raw, error) {
	v, ok := row[field]
	if !ok {
		return nil, errors.Wrapf(errors.ErrMissingField, "%q", field)
	}
	switch m := v.(type) {
	case Raw:
		return m, nil
	case map[string]any:
		return Raw(m), nil
	default:
		return nil, errors.Wrapf(errors.ErrMissingField, "%q: unexpected type %T", field, v)
	}
}

// MapMMLU converts an MMLU row. The answer arrives as a choice index.
func MapMMLU(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	choices, err := rawStringSlice(row, "choices")
	if err != nil {
		return Fields{}, err
	}
	answer, err := rawInt(row, "answer")
	if err != nil {
		return Fields{}, err
	}
	return Fields{
		Question:    question,
		OptionList:  choices,
		AnswerIndex: &answer,
	}, nil
}

// MapAI2ARC converts an AI2 ARC row. Choices are nested under a
// "choices" object with parallel "text" and "label" lists, and the
// answer key is already a letter for most rows but a numeral for some
// legacy ones, so it is resolved against the labels.
func MapAI2ARC(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	choices, err := rawMap(row, "choices")
	if err != nil {
		return Fields{}, err
	}
	texts, err := rawStringSlice(choices, "text")
	if err != nil {
		return Fields{}, err
	}
	labels, err := rawStringSlice(choices, "label")
	if err != nil {
		return Fields{}, err
	}
	answerKey, err := rawString(row, "answerKey")
	if err != nil {
		return Fields{}, err
	}
	fields := Fields{Question: question, OptionList: texts}
	for i, label := range labels {
		if label == answerKey {
			idx := i
			fields.AnswerIndex = &idx
			break
		}
	}
	if fields.AnswerIndex == nil {
		fields.Answer = answerKey
	}
	return fields, nil
}

// MapGSM8K converts a GSM8K row. The raw answer is a worked solution
// terminated by "#### <final>"; the final value becomes the answer and
// the full solution the explanation.
func MapGSM8K(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	solution, err := rawString(row, "answer")
	if err != nil {
		return Fields{}, err
	}
	answer := solution
	if i := strings.LastIndex(solution, "####"); i >= 0 {
		answer = strings.TrimSpace(solution[i+len("####"):])
	}
	return Fields{
		Question:    question,
		Answer:      answer,
		Explanation: solution,
	}, nil
}

// MapMedMCQA converts a MedMCQA row: four fixed option fields and a
// correct-option index.
func MapMedMCQA(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	options := make([]string, 0, 4)
	for _, field := range []string{"opa", "opb", "opc", "opd"} {
		opt, err := rawString(row, field)
		if err != nil {
			return Fields{}, err
		}
		options = append(options, opt)
	}
	cop, err := rawInt(row, "cop")
	if err != nil {
		return Fields{}, err
	}
	return Fields{
		Question:    question,
		OptionList:  options,
		AnswerIndex: &cop,
		Explanation: rawOptionalString(row, "exp"),
	}, nil
}

// MapWinogrande converts a Winogrande row: a sentence with a blank and
// two candidate fills. The answer is "1" or "2".
func MapWinogrande(row Raw, _ int) (Fields, error) {
	sentence, err := rawString(row, "sentence")
	if err != nil {
		return Fields{}, err
	}
	option1, err := rawString(row, "option1")
	if err != nil {
		return Fields{}, err
	}
	option2, err := rawString(row, "option2")
	if err != nil {
		return Fields{}, err
	}
	answer, err := rawInt(row, "answer")
	if err != nil {
		return Fields{}, err
	}
	if answer < 1 || answer > 2 {
		return Fields{}, fmt.Errorf("answer %d out of range [1,2]", answer)
	}
	idx := answer - 1
	return Fields{
		Question:    sentence,
		OptionList:  []string{option1, option2},
		AnswerIndex: &idx,
	}, nil
}

// MapMathVista converts a MathVista row. Options are present only for
// multiple-choice rows; when they are, the free-text answer is matched
// back to its option index. The image path is carried through.
func MapMathVista(row Raw, _ int) (Fields, error) {
	question, err := rawString(row, "question")
	if err != nil {
		return Fields{}, err
	}
	answer := rawOptionalString(row, "answer")
	fields := Fields{Question: question, Answer: answer}
	if options, err := rawStringSlice(row, "choices"); err == nil && len(options) > 0 {
		fields.OptionList = options
		for i, opt := range options {
			if opt == answer {
				idx := i
				fields.AnswerIndex = &idx
				break
			}
		}
	}
	if image := rawOptionalString(row, "image"); image != "" {
		fields.Images = []string{image}
	}
	return fields, nil
}
