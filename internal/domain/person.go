package domain

// Person OMOP CDM person 表领域模型
type Person struct {
	PersonID int64 `db:"person_id"` // BIGSERIAL, PRIMARY KEY

	GenderConceptID    int `db:"gender_concept_id"`    // INTEGER, NOT NULL - 默认 8521（未知）
	YearOfBirth        int `db:"year_of_birth"`        // INTEGER, NOT NULL - 默认 1970，由临床抽取更新
	RaceConceptID      int `db:"race_concept_id"`      // INTEGER, NOT NULL DEFAULT 0
	EthnicityConceptID int `db:"ethnicity_concept_id"` // INTEGER, NOT NULL DEFAULT 0

	// 去标识化键（deriveKey 输出），按此 upsert，不回写原始标识
	PersonSourceValue string `db:"person_source_value"` // VARCHAR(32), NOT NULL, UNIQUE
}
