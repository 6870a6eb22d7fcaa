package classifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Coding 入站诊断编码（FHIR Condition.code.coding）
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// Verdict 分类结果
type Verdict struct {
	IsRare bool   `json:"isRare"`
	Reason string `json:"reason"`
}

// 罕见肿瘤 ICD-10 面板
// 覆盖间皮瘤、腹膜间皮瘤、阑尾癌、肾上腺皮质癌、Merkel 细胞癌、葡萄膜黑色素瘤
var rareOncologyICD10 = map[string]bool{
	"C38.4":  true, // Pleural mesothelioma
	"C45.9":  true, // Mesothelioma unspecified
	"C48.2":  true, // Peritoneal mesothelioma
	"C74.0":  true, // Adrenocortical carcinoma
	"C44.20": true, // Merkel cell carcinoma
	"C69.3":  true, // Uveal melanoma
	"C18.1":  true, // Appendiceal carcinoma
	"C80.1":  true, // Malignant neoplasm, unspecified + atypical presentation
}

// 罕见肿瘤 SNOMED-CT 概念面板
var rareSNOMEDConcepts = map[int64]bool{
	302849000: true, // Mesothelioma
	109989006: true, // Adrenocortical carcinoma
	404074006: true, // Merkel cell carcinoma
	399488007: true, // Uveal melanoma
}

// Classify 罕见肿瘤病例分类。纯函数，无 I/O。
// 未命中任一面板的编码静默忽略；SNOMED 数值解析失败按"未命中"处理，不报错。
// Reason 按输入顺序列出全部命中项。
func Classify(codings []Coding) Verdict {
	var matched []string

	for _, coding := range codings {
		if rareOncologyICD10[coding.Code] {
			matched = append(matched, fmt.Sprintf("ICD-10:%s (%s)", coding.Code, displayOrUnknown(coding.Display)))
		}
		if snomedCode, err := strconv.ParseInt(coding.Code, 10, 64); err == nil {
			if rareSNOMEDConcepts[snomedCode] {
				matched = append(matched, fmt.Sprintf("SNOMED:%s (%s)", coding.Code, displayOrUnknown(coding.Display)))
			}
		}
	}

	if len(matched) > 0 {
		return Verdict{
			IsRare: true,
			Reason: "Rare oncology codes detected: " + strings.Join(matched, ", "),
		}
	}

	return Verdict{IsRare: false, Reason: ""}
}

func displayOrUnknown(display string) string {
	if display == "" {
		return "unknown"
	}
	return display
}
