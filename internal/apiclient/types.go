package apiclient

import "time"

// LoginRequest is the body of POST /authentication/login.
type LoginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Registration is the "user" part of the sign-up form.
type Registration struct {
	UserName     string `json:"userName"`
	UserEmail    string `json:"userEmail"`
	UserPassword string `json:"userPassword"`
	Role         string `json:"role"`
}

type User struct {
	ID        int64  `json:"id,omitempty"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	Role      string `json:"role"`
}

type Degree struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type Skill struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

type Candidate struct {
	ID     int64    `json:"id,omitempty"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Skills []string `json:"skills,omitempty"`
	Degree string   `json:"degree,omitempty"`
}

type Application struct {
	ID          int64  `json:"id,omitempty"`
	CandidateID int64  `json:"candidateId"`
	Position    string `json:"position"`
	Status      string `json:"status"`
}

type Interview struct {
	ID            int64     `json:"id,omitempty"`
	ApplicationID int64     `json:"applicationId"`
	Interviewer   string    `json:"interviewer"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Status        string    `json:"status"`
}
