package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_RareICD10Code(t *testing.T) {
	verdict := Classify([]Coding{
		{System: "http://hl7.org/fhir/sid/icd-10", Code: "C45.9", Display: "Mesothelioma, unspecified"},
	})

	assert.True(t, verdict.IsRare)
	assert.Equal(t, "Rare oncology codes detected: ICD-10:C45.9 (Mesothelioma, unspecified)", verdict.Reason)
}

func TestClassify_RareSNOMEDConcept(t *testing.T) {
	verdict := Classify([]Coding{
		{System: "http://snomed.info/sct", Code: "302849000", Display: "Mesothelioma"},
	})

	assert.True(t, verdict.IsRare)
	assert.Contains(t, verdict.Reason, "SNOMED:302849000 (Mesothelioma)")
}

// 多个命中按输入顺序全部列出，不是只报第一个
func TestClassify_MultipleMatchesInInputOrder(t *testing.T) {
	verdict := Classify([]Coding{
		{Code: "C74.0", Display: "Adrenocortical carcinoma"},
		{Code: "I10", Display: "Hypertension"},
		{Code: "404074006", Display: "Merkel cell carcinoma"},
	})

	assert.True(t, verdict.IsRare)
	assert.Equal(t,
		"Rare oncology codes detected: ICD-10:C74.0 (Adrenocortical carcinoma), SNOMED:404074006 (Merkel cell carcinoma)",
		verdict.Reason)
}

func TestClassify_NoMatch(t *testing.T) {
	verdict := Classify([]Coding{
		{Code: "E11.9", Display: "Type 2 diabetes"},
		{Code: "I10"},
	})

	assert.False(t, verdict.IsRare)
	assert.Empty(t, verdict.Reason)
}

// 非数字编码不会导致异常，按未命中处理
func TestClassify_GarbageCodeDoesNotPanic(t *testing.T) {
	verdict := Classify([]Coding{
		{Code: "not-a-number!!"},
		{Code: ""},
		{Code: "C38.4", Display: "Pleural mesothelioma"},
	})

	assert.True(t, verdict.IsRare)
	assert.Equal(t, "Rare oncology codes detected: ICD-10:C38.4 (Pleural mesothelioma)", verdict.Reason)
}

func TestClassify_MissingDisplayRendersUnknown(t *testing.T) {
	verdict := Classify([]Coding{{Code: "C18.1"}})

	assert.True(t, verdict.IsRare)
	assert.Equal(t, "Rare oncology codes detected: ICD-10:C18.1 (unknown)", verdict.Reason)
}

func TestClassify_EmptyInput(t *testing.T) {
	verdict := Classify(nil)

	assert.False(t, verdict.IsRare)
	assert.Empty(t, verdict.Reason)
}
