package docserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL + "/"))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListDepartmentsNormalisesIDsAndDropsIncomplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/departments", r.URL.Path)
		writeJSON(w, 200, `[{"id":1,"name":"Academic Affairs","phone":"042"},
			{"departmentId":"7","name":"Scholarships","leftLabel":"Student Support"},
			{"id":3,"name":""},{"name":"no id"}]`)
	})

	depts, err := client.ListDepartments(context.Background())
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, domain.Department{ID: "1", Name: "Academic Affairs"}, depts[0])
	assert.Equal(t, "7", depts[1].ID)
	assert.Equal(t, "Student Support|Scholarships", depts[1].DisplayName())
}

func TestListDocTypesMapsTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/departments/1/doc-types", r.URL.Path)
		writeJSON(w, 200, `[{"docTypeId":101,"title":"Leave of absence","requiredFields":["name"]},{"docTypeId":102}]`)
	})

	types, err := client.ListDocTypes(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []domain.DocType{{ID: "101", Name: "Leave of absence"}}, types)
}

func TestRequiredFieldsAcceptsMixedShapes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `["Name",{"label":"Student ID"},{"name":"Phone"},{"title":"Major"},{},42]`)
	})

	fields, err := client.RequiredFields(context.Background(), "101")
	require.NoError(t, err)
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, f.Label)
	}
	assert.Equal(t, []string{"Name", "Student ID", "Phone", "Major", "Required item 5", "Required item 6"}, labels)
}

func TestDeadlineShapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *domain.DeadlineInfo
	}{
		{"object", 200, `{"docTypeId":101,"title":"x","deadline":"2025-08-21"}`, &domain.DeadlineInfo{Deadline: "2025-08-21"}},
		{"object with null", 200, `{"docTypeId":101,"deadline":null}`, nil},
		{"json string", 200, `"2025-08-21T23:59:59"`, &domain.DeadlineInfo{Deadline: "2025-08-21T23:59:59"}},
		{"plain text", 200, `2025-08-21T23:59:59`, &domain.DeadlineInfo{Deadline: "2025-08-21T23:59:59"}},
		{"not found", 404, `{"message":"no deadline"}`, nil},
		{"no content", 204, ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/doc-types/101/deadline", r.URL.Path)
				if tt.status == 204 {
					w.WriteHeader(204)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := client.Deadline(context.Background(), "101")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeadlineServerErrorPropagates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{"detail":"db down"}`)
	})

	_, err := client.Deadline(context.Background(), "101")
	require.Error(t, err)
	assert.True(t, IsStatus(err, 500))
	assert.Equal(t, "db down", ErrorMessage(err))
}

func TestCreateSubmissionSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/submissions", r.URL.Path)
		assert.Equal(t, "JSESSIONID=abc", r.Header.Get("Cookie"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "101", r.FormValue("docTypeId"))
		assert.Equal(t, "[]", r.FormValue("fieldsJson"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, `leave "form".pdf`, hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF", string(content))
		writeJSON(w, 200, `{"submissionId":12,"status":"BOT_REVIEW","fileUrl":"/f","submittedAt":null}`)
	})

	summary, err := client.WithSession("JSESSIONID=abc").CreateSubmission(context.Background(), "101", "[]", domain.Upload{
		FileName:    `leave "form".pdf`,
		ContentType: "application/pdf",
		Content:     []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "12", summary.ID)
	assert.Equal(t, domain.SubmissionStatusBotReview, summary.Status)
}

func TestCreateSubmissionDeadlineError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, `{"status":400,"message":"마감일이 지났습니다."}`)
	})

	_, err := client.CreateSubmission(context.Background(), "101", "[]", domain.Upload{FileName: "a.pdf"})
	require.Error(t, err)
	assert.Equal(t, "마감일이 지났습니다.", ErrorMessage(err))
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestSubmitSubmissionSendsMode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/submissions/12/submit", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DIRECT", body["mode"])
		writeJSON(w, 200, `{"submissionId":12,"status":"SUBMITTED"}`)
	})

	summary, err := client.SubmitSubmission(context.Background(), "12", domain.SubmitModeDirect)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusSubmitted, summary.Status)
}

func TestSubmissionSummaryIncludesAdminNotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"submissionId":"12","status":"REJECTED","admin":{"decisionMemo":"see X","fieldNotes":[{"label":"X","comment":"bad"}]}}`)
	})

	summary, err := client.SubmissionSummary(context.Background(), "12")
	require.NoError(t, err)
	require.NotNil(t, summary.Admin)
	assert.Equal(t, "see X", summary.Admin.DecisionMemo)
	assert.Equal(t, []domain.FieldNote{{Comment: "bad"}}, summary.Admin.FieldNotes)
}

func TestReviewResultDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"submissionId":12,"status":"NEEDS_FIX","debugTexts":["OCR start",null],"findings":[{"label":"Signature","message":"missing"}],"verdict":null,"reason":null}`)
	})

	result, err := client.ReviewResult(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, "12", result.SubmissionID)
	assert.Empty(t, result.Reason)
	assert.Empty(t, result.Verdict)
	assert.Equal(t, []string{"OCR start"}, result.DebugTexts)
	assert.Equal(t, []domain.Finding{{Label: "Signature", Message: "missing"}}, result.Findings)
}

func TestListMySubmissionsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "REJECTED,NEEDS_FIX", r.URL.Query().Get("status"))
		writeJSON(w, 200, `[{"submissionId":3,"status":"REJECTED","submittedAt":"2025-08-01T10:00:00","filename":"leave.pdf"}]`)
	})

	rows, err := client.ListMySubmissions(context.Background(), domain.SubmissionFilter{
		Statuses: domain.StatusFilterRejected.Statuses(),
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "leave.pdf", rows[0].Title)
}

func TestLoginCapturesSessionCookie(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			writeJSON(w, 401, `{"message":"invalid credentials"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1", Path: "/"})
		writeJSON(w, 200, `{"memberId":"2023001","name":"Kim","role":"STUDENT","department":"CS","academicStatus":"ENROLLED"}`)
	})

	member, session, err := client.Login(context.Background(), "2023001", "pw")
	require.NoError(t, err)
	assert.Equal(t, "JSESSIONID=s1", session)
	assert.Equal(t, domain.RoleStudent, member.Role)
	assert.Equal(t, "Kim", member.Name)

	_, _, err = client.Login(context.Background(), "2023001", "nope")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "invalid credentials", ErrorMessage(err))
}

func TestPickMessagePrecedence(t *testing.T) {
	assert.Equal(t, "m", pickMessage([]byte(`{"message":"m","detail":"d"}`), 400))
	assert.Equal(t, "d", pickMessage([]byte(`{"message":"","detail":"d"}`), 400))
	assert.Equal(t, "plain failure", pickMessage([]byte(`plain failure`), 400))
	assert.Equal(t, "quoted", pickMessage([]byte(`"quoted"`), 400))
	assert.Equal(t, "Bad Gateway", pickMessage(nil, 502))
}
