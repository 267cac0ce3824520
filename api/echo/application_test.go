package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/balozi/api/echo"
	"github.com/trezcool/balozi/core/application"
)

const applicantPhone = "5551234567"

func personalStep() map[string]string {
	return map[string]string{
		"first_name":    "Amina",
		"last_name":     "Kalala",
		"email":         "amina@test.cd",
		"current_grade": "11",
		"entry_grade":   "9",
	}
}

func referencesStep() map[string]string {
	return map[string]string{
		"ref1_name":  "Mr. Ilunga",
		"ref1_email": "ilunga@test.cd",
		"ref2_name":  "Mrs. Mbuyi",
		"ref2_email": "mbuyi@test.cd",
	}
}

func questionnaireStep() map[string]string {
	answers := make(map[string]string, 9)
	for i := 1; i <= 9; i++ {
		answers[fmt.Sprintf("answer%d", i)] = fmt.Sprintf("answer %d", i)
	}
	return answers
}

func (env *testEnv) postTranscript(t *testing.T, phone, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buff bytes.Buffer
	w := multipart.NewWriter(&buff)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="transcript"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/applications/"+phone+"/transcript", &buff)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func TestApplicationAPI_intakeFlow(t *testing.T) {
	env := newTestEnv(t)

	var session echoapi.SessionResponse

	// step 1: contact opens a draft and lands on the personal step
	rec := env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": "(555) 123-4567"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &session)
	assert.Equal(t, application.PhaseStep, session.Phase)
	assert.Equal(t, application.StepPersonal, session.Step)
	assert.Equal(t, applicantPhone, session.Application.Phone)

	// step 2
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/2", "", personalStep())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &session)
	assert.Equal(t, application.StepAcademic, session.Step)
	assert.Equal(t, "Amina", session.Application.FirstName)

	// step 3: transcript then GPA
	rec = env.postTranscript(t, applicantPhone, "transcript.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &session)
	assert.Equal(t, "/uploads/transcripts/"+applicantPhone+".pdf", session.Application.TranscriptURL)

	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/3", "", map[string]string{"gpa": "3.75"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// steps 4 & 5
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/4", "", referencesStep())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/5", "", questionnaireStep())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// submit
	rec = env.request(t, http.MethodPost, "/v1/applications/"+applicantPhone+"/submit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &session)
	assert.Equal(t, application.PhaseSubmitted, session.Phase)
	assert.Equal(t, application.StatusSubmitted, session.Application.Status)

	// a retried submit is acknowledged as success, not a conflict
	rec = env.request(t, http.MethodPost, "/v1/applications/"+applicantPhone+"/submit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &session)
	assert.Equal(t, application.StatusSubmitted, session.Application.Status)
	assert.False(t, session.Application.SubmittedAt.IsZero())

	// contact after submission reports the blocked session, still 200
	rec = env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": applicantPhone})
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(t, rec, &session)
	assert.Equal(t, application.PhaseBlocked, session.Phase)

	// but edits are refused
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/2", "", personalStep())
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.request(t, http.MethodDelete, "/v1/applications/"+applicantPhone, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApplicationAPI_validation(t *testing.T) {
	env := newTestEnv(t)

	// bad phone
	rec := env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": "555"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fldErrs map[string]string
	env.decode(t, rec, &fldErrs)
	assert.Contains(t, fldErrs, "phone")

	rec = env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": applicantPhone})
	require.Equal(t, http.StatusOK, rec.Code)

	// incomplete personal step names every missing field
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/2", "", map[string]string{"first_name": "Amina"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fldErrs = nil
	env.decode(t, rec, &fldErrs)
	for _, fld := range []string{"last_name", "email", "current_grade", "entry_grade"} {
		assert.Contains(t, fldErrs, fld)
	}
	assert.NotContains(t, fldErrs, "first_name")

	// gpa bounds
	for _, gpa := range []string{"5.01", "-0.01", "abc"} {
		rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/3", "", map[string]string{"gpa": gpa})
		require.Equal(t, http.StatusBadRequest, rec.Code, "gpa=%s", gpa)
		fldErrs = nil
		env.decode(t, rec, &fldErrs)
		assert.Contains(t, fldErrs, "gpa")
	}

	// unknown step number
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/9", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// premature submit lists everything still missing
	rec = env.request(t, http.MethodPost, "/v1/applications/"+applicantPhone+"/submit", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fldErrs = nil
	env.decode(t, rec, &fldErrs)
	assert.Contains(t, fldErrs, "gpa")
	assert.Contains(t, fldErrs, "answer9")
}

func TestApplicationAPI_transcriptErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": applicantPhone})
	require.Equal(t, http.StatusOK, rec.Code)

	// academic section not reached
	rec = env.postTranscript(t, applicantPhone, "t.pdf", "application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/2", "", personalStep())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.postTranscript(t, applicantPhone, "t.gif", "image/gif", []byte("GIF89a"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.postTranscript(t, applicantPhone, "t.pdf", "application/pdf", make([]byte, 1<<20+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = env.postTranscript(t, applicantPhone, "t.pdf", "application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationAPI_restart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": applicantPhone})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(t, http.MethodPut, "/v1/applications/"+applicantPhone+"/steps/2", "", personalStep())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodDelete, "/v1/applications/"+applicantPhone, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the record is gone; a new contact starts from scratch
	var session echoapi.SessionResponse
	rec = env.request(t, http.MethodPost, "/v1/applications/contact", "", map[string]string{"phone": applicantPhone})
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(t, rec, &session)
	assert.Empty(t, session.Application.FirstName)
}

func TestApplicationAPI_admin(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)
	ambassador := env.createUser(t, "Amb", "ambassad", "amb@test.cd", "S3cret!pwd", nil)

	// seed a submitted application straight through the service layer
	ctx := context.Background()
	wf := application.NewWorkflow(env.conf, env.appSvc, nil)
	_, err := wf.SubmitContact(ctx, applicantPhone)
	require.NoError(t, err)
	_, err = env.appSvc.SaveStep(ctx, applicantPhone, application.StepPatch{
		Step:     application.StepPersonal,
		Personal: &application.PersonalStep{FirstName: "Amina", LastName: "Kalala", Email: "amina@test.cd", CurrentGrade: "11", EntryGrade: "9"},
	})
	require.NoError(t, err)
	_, err = env.appSvc.Finalize(ctx, applicantPhone)
	require.NoError(t, err)

	// auth required; plain ambassadors are refused
	rec := env.request(t, http.MethodGet, "/v1/applications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.request(t, http.MethodGet, "/v1/applications", env.token(t, ambassador), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// list and filter
	var apps []application.Application
	rec = env.request(t, http.MethodGet, "/v1/applications?status=submitted", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &apps)
	require.Len(t, apps, 1)
	assert.Equal(t, applicantPhone, apps[0].Phone)

	rec = env.request(t, http.MethodGet, "/v1/applications?search=nobody", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps = nil
	env.decode(t, rec, &apps)
	assert.Empty(t, apps)

	// retrieve
	var app application.Application
	rec = env.request(t, http.MethodGet, "/v1/applications/"+applicantPhone, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(t, rec, &app)
	assert.Equal(t, "Amina", app.FirstName)

	rec = env.request(t, http.MethodGet, "/v1/applications/0000000000", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// approve; the decision records the admin and is final
	rec = env.request(t, http.MethodPost, "/v1/applications/"+applicantPhone+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.decode(t, rec, &app)
	assert.Equal(t, application.StatusApproved, app.Status)
	assert.NotEmpty(t, app.DecidedBy)

	rec = env.request(t, http.MethodPost, "/v1/applications/"+applicantPhone+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
