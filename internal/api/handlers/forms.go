package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted by any form.
const MinPasswordLength = 6

// fieldErrors maps a form field to its validation messages.
type fieldErrors map[string][]string

func (fe fieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe fieldErrors) invalid() bool {
	return len(fe) > 0
}

func required(fe fieldErrors, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		fe.add(field, "This field is required.")
		return false
	}
	return true
}

func minLength(fe fieldErrors, field, value string, n int) {
	if utf8.RuneCountInString(value) < n {
		fe.add(field, fmt.Sprintf("Field must be at least %d characters long.", n))
	}
}

// credentialsForm is the body of the signup and login forms.
type credentialsForm struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

func parseCredentialsForm(r *http.Request) (credentialsForm, fieldErrors, error) {
	if err := r.ParseForm(); err != nil {
		return credentialsForm{}, nil, err
	}
	f := credentialsForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	fe := fieldErrors{}
	required(fe, "username", f.Username)
	if required(fe, "password", f.Password) {
		minLength(fe, "password", f.Password, MinPasswordLength)
	}
	return f, fe, nil
}

// changePasswordForm is the body of the change-password form.
type changePasswordForm struct {
	OldPassword  string
	NewPassword1 string
	NewPassword2 string
}

func parseChangePasswordForm(r *http.Request) (changePasswordForm, fieldErrors, error) {
	if err := r.ParseForm(); err != nil {
		return changePasswordForm{}, nil, err
	}
	f := changePasswordForm{
		OldPassword:  r.PostFormValue("oldPassword"),
		NewPassword1: r.PostFormValue("newPassword1"),
		NewPassword2: r.PostFormValue("newPassword2"),
	}

	fe := fieldErrors{}
	required(fe, "oldPassword", f.OldPassword)
	if required(fe, "newPassword1", f.NewPassword1) {
		minLength(fe, "newPassword1", f.NewPassword1, MinPasswordLength)
	}
	if required(fe, "newPassword2", f.NewPassword2) {
		minLength(fe, "newPassword2", f.NewPassword2, MinPasswordLength)
	}
	return f, fe, nil
}
