package services

import (
	"testing"

	"github.com/examviewer/backend/pkg/models"
)

func newTestStateService(questions []models.Question) *StateService {
	s := NewStateService(nil)
	s.ResetForExam("TEST-1", questions)
	return s
}

func multiAnswerQuestions() []models.Question {
	return []models.Question{
		{Question: "Pregunta 1", Answers: []string{"A. uno", "B. dos"}, MostVoted: "A"},
		{Question: "Pregunta 2", Answers: []string{"A. uno", "B. dos", "C. tres", "D. cuatro"}, MostVoted: "AD"},
		{Question: "Pregunta 3", Answers: []string{"A. uno", "B. dos"}, MostVoted: "B"},
	}
}

func TestSubmitAnswerSetEquality(t *testing.T) {
	cases := []struct {
		name     string
		selected []string
		want     models.QuestionStatus
	}{
		{"conjunto exacto en orden", []string{"A", "D"}, models.StatusCorrect},
		{"conjunto exacto desordenado", []string{"D", "A"}, models.StatusCorrect},
		{"subconjunto", []string{"A"}, models.StatusIncorrect},
		{"superconjunto", []string{"A", "D", "C"}, models.StatusIncorrect},
		{"conjunto disjunto", []string{"B"}, models.StatusIncorrect},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newTestStateService(multiAnswerQuestions())
			s.SubmitAnswer(1, c.selected)
			if got := s.GetQuestionStatus(1); got != c.want {
				t.Fatalf("SubmitAnswer(%v) status=%s, want %s", c.selected, got, c.want)
			}
		})
	}
}

func TestFirstAnswerImmutable(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	// Primera acción: respuesta incorrecta
	s.SubmitAnswer(1, []string{"A"})
	first, _ := s.State(1)
	if first.FirstAnswer == nil || first.FirstAnswer.Result != models.ResultIncorrect {
		t.Fatalf("FirstAnswer no registrado tras la primera respuesta: %+v", first.FirstAnswer)
	}
	firstTimestamp := first.FirstAnswer.Timestamp

	// Ninguna secuencia posterior puede cambiar FirstAnswer
	s.ResetQuestion(1)
	s.SubmitAnswer(1, []string{"A", "D"})
	s.MarkAsPreview(1)
	s.SubmitAnswer(1, []string{"B"})
	s.ResetQuestion(1)

	st, _ := s.State(1)
	if st.FirstAnswer == nil {
		t.Fatal("FirstAnswer desapareció tras los reintentos")
	}
	if st.FirstAnswer.Result != models.ResultIncorrect {
		t.Errorf("FirstAnswer.Result=%s, want %s", st.FirstAnswer.Result, models.ResultIncorrect)
	}
	if !st.FirstAnswer.Timestamp.Equal(firstTimestamp) {
		t.Error("FirstAnswer.Timestamp fue sobrescrito")
	}
	if got := s.GetFirstAnswerStatus(1); got != models.StatusIncorrect {
		t.Errorf("GetFirstAnswerStatus=%s, want %s", got, models.StatusIncorrect)
	}
}

func TestResetQuestionNoOpWithoutAnswer(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	// Sin respuesta actual: no hace nada
	s.ResetQuestion(0)
	if got := s.GetQuestionStatus(0); got != models.StatusUnanswered {
		t.Fatalf("status tras reset vacío=%s, want %s", got, models.StatusUnanswered)
	}

	// Con respuesta: borra el intento y conserva FirstAnswer
	s.SubmitAnswer(0, []string{"A"})
	s.ResetQuestion(0)
	st, _ := s.State(0)
	if st.UserAnswer != nil {
		t.Error("UserAnswer no fue borrado por ResetQuestion")
	}
	if st.FirstAnswer == nil {
		t.Error("FirstAnswer no debe borrarse en ResetQuestion")
	}
	if st.Status != models.StatusUnanswered {
		t.Errorf("status tras reset=%s, want %s", st.Status, models.StatusUnanswered)
	}
}

func TestMarkAsPreviewSemantics(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	// Vista previa como primera acción queda como FirstAnswer permanente
	s.MarkAsPreview(0)
	if got := s.GetFirstAnswerStatus(0); got != models.StatusPreview {
		t.Fatalf("GetFirstAnswerStatus tras preview=%s, want %s", got, models.StatusPreview)
	}

	// Responder bien después no cambia el registro permanente
	s.SubmitAnswer(0, []string{"A"})
	if got := s.GetQuestionStatus(0); got != models.StatusCorrect {
		t.Errorf("status vivo=%s, want %s", got, models.StatusCorrect)
	}
	if got := s.GetFirstAnswerStatus(0); got != models.StatusPreview {
		t.Errorf("GetFirstAnswerStatus=%s, want %s", got, models.StatusPreview)
	}

	// La vista previa no borra una respuesta existente
	s.SubmitAnswer(2, []string{"B"})
	s.MarkAsPreview(2)
	st, _ := s.State(2)
	if st.UserAnswer == nil {
		t.Error("MarkAsPreview no debe borrar UserAnswer")
	}
	if st.Status != models.StatusPreview {
		t.Errorf("status tras preview=%s, want %s", st.Status, models.StatusPreview)
	}
}

func TestGetFirstAnswerStatusDefaults(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	if got := s.GetFirstAnswerStatus(0); got != models.StatusUnanswered {
		t.Errorf("sin acciones: GetFirstAnswerStatus=%s, want %s", got, models.StatusUnanswered)
	}
	// Índice fuera de rango: valor por defecto, sin pánico
	if got := s.GetFirstAnswerStatus(99); got != models.StatusUnanswered {
		t.Errorf("fuera de rango: GetFirstAnswerStatus=%s, want %s", got, models.StatusUnanswered)
	}
	if got := s.GetQuestionStatus(-1); got != models.StatusUnanswered {
		t.Errorf("índice negativo: GetQuestionStatus=%s, want %s", got, models.StatusUnanswered)
	}
}

func TestInvalidIndexMutationsNoOp(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	// Fuera de rango: ninguna mutación hace nada ni entra en pánico
	s.SubmitAnswer(99, []string{"A"})
	s.MarkAsPreview(-3)
	s.ResetQuestion(99)
	s.ToggleFavorite(99)
	s.SetDifficulty(99, "hard")

	// Examen no cargado: también no-op
	empty := NewStateService(nil)
	empty.SubmitAnswer(0, []string{"A"})
	if got := empty.GetQuestionStatus(0); got != models.StatusUnanswered {
		t.Errorf("sin examen: status=%s, want %s", got, models.StatusUnanswered)
	}
}

func TestAnswerEventsReachSubscribers(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	var events []AnswerEvent
	s.Subscribe(func(evt AnswerEvent) { events = append(events, evt) })

	s.SubmitAnswer(0, []string{"A"})
	s.MarkAsPreview(1)
	s.SubmitAnswer(2, []string{"A"})

	if len(events) != 3 {
		t.Fatalf("eventos emitidos=%d, want 3", len(events))
	}
	last := events[len(events)-1]
	if last.ExamCode != "TEST-1" {
		t.Errorf("ExamCode=%s, want TEST-1", last.ExamCode)
	}
	// El progreso se basa en FirstAnswer: 2 respondidas, 1 correcta
	// (la vista previa no cuenta como respondida)
	if last.Progress.QuestionsAnswered != 2 || last.Progress.CorrectAnswers != 1 {
		t.Errorf("Progress=%+v, want 2 respondidas / 1 correcta", last.Progress)
	}
}

func TestProgressIgnoresRetries(t *testing.T) {
	s := newTestStateService(multiAnswerQuestions())

	// Primera acción incorrecta, después reintento correcto
	s.SubmitAnswer(0, []string{"B"})
	s.ResetQuestion(0)
	s.SubmitAnswer(0, []string{"A"})

	p := s.Progress()
	if p.QuestionsAnswered != 1 {
		t.Fatalf("QuestionsAnswered=%d, want 1", p.QuestionsAnswered)
	}
	if p.CorrectAnswers != 0 {
		t.Errorf("CorrectAnswers=%d, want 0: el reintento no debe contar", p.CorrectAnswers)
	}
}

func TestAnswerKeyDerivation(t *testing.T) {
	cases := []struct {
		name string
		q    models.Question
		want []string
	}{
		{"más votada simple", models.Question{MostVoted: "B"}, []string{"B"}},
		{"más votada múltiple", models.Question{MostVoted: "AD"}, []string{"A", "D"}},
		{"canónicas como respaldo", models.Question{CorrectAnswers: []string{"B", "C"}}, []string{"B", "C"}},
		{"canónica simple", models.Question{CorrectAnswer: "c"}, []string{"C"}},
		{"sin clave", models.Question{}, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := answerKey(&c.q)
			if len(got) != len(c.want) {
				t.Fatalf("answerKey=%v, want %v", got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("answerKey=%v, want %v", got, c.want)
				}
			}
		})
	}
}

func TestMergeFavorites(t *testing.T) {
	states := make([]models.QuestionState, 3)

	// Entradas no numéricas o fuera de rango se ignoran sin pánico
	mergeFavorites(states, []string{"0", "2", "99", "-1", "x"})

	if !states[0].IsFavorite || !states[2].IsFavorite {
		t.Error("los índices válidos del conjunto deben marcarse como favoritos")
	}
	if states[1].IsFavorite {
		t.Error("un índice ausente del conjunto no debe marcarse")
	}

	// La unión no desmarca favoritos ya restaurados por anotaciones
	states[1].IsFavorite = true
	mergeFavorites(states, []string{"0"})
	if !states[1].IsFavorite {
		t.Error("la unión con el conjunto no debe desmarcar favoritos")
	}
}

func TestSubmitAnswerWithoutKey(t *testing.T) {
	s := newTestStateService([]models.Question{{Question: "sin clave", Answers: []string{"A. x"}}})

	s.SubmitAnswer(0, []string{"A"})
	if got := s.GetQuestionStatus(0); got != models.StatusAnswered {
		t.Errorf("status=%s, want %s", got, models.StatusAnswered)
	}
	if got := s.GetFirstAnswerStatus(0); got != models.StatusAnswered {
		t.Errorf("GetFirstAnswerStatus=%s, want %s", got, models.StatusAnswered)
	}
}
