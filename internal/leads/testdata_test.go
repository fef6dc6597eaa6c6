package leads

// validRecord returns a complete usa-interests submission.
func validRecord() *Record {
	return &Record{
		FullName:           "Maria da Silva",
		Email:              "maria@example.com",
		Country:            "Brasil",
		EducationLevel:     "Graduação completa",
		StudyArea:          "Administração",
		GraduationYear:     "2019",
		IsCurrentlyWorking: "Não, sou estudante em tempo integral",
		FinancialSituation: "Prefiro não responder",
		USAInterests:       []string{"Vida acadêmica"},
		EnglishLevel:       "intermediario",
		HowDidYouFind:      "YouTube",
		ContactPreference:  "Email",
	}
}
