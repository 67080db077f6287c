package storyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

type (
	// A Client defines all interactions that can be performed on the story server.
	Client interface {
		// Register creates a new account on the story server.
		Register(name, email, password string) error
		// Login connects the Client to the story server and keeps the
		// returned token as the bearer token.
		Login(email, password string) (*LoginResult, error)
		// Stories returns the stories feed. When location is true, the
		// server includes lat/lon coordinates.
		Stories(location bool) ([]Story, error)
		// AddStory uploads a story submission as a multipart request.
		// The submission's own token takes precedence over the client's
		// bearer token, since a queued submission carries the credential
		// captured at enqueue time.
		AddStory(submission Submission) error
		// BearerToken returns the authentication used for requests sent to the story server.
		BearerToken() string
		// SetBearerToken sets the authentication used for requests sent to the story server.
		SetBearerToken(token string)
	}

	// A Story is a story record as rendered by the server.
	Story struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		PhotoURL    string   `json:"photoUrl"`
		CreatedAt   string   `json:"createdAt"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
	}

	// A Submission is the payload of a story upload.
	Submission struct {
		Description string
		Photo       []byte
		PhotoName   string
		Lat         *float64
		Lon         *float64
		Token       string
	}

	// A LoginResult holds the identity returned by a successful login.
	LoginResult struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Token  string `json:"token"`
	}

	p      map[string]any
	client struct {
		http     *http.Client
		endpoint string
		bearer   string
	}
)

// NewDefaultClient returns a new Client with default HTTP client.
func NewDefaultClient(endpoint string) (Client, error) {
	return NewClient(http.DefaultClient, endpoint)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint string) (Client, error) {
	_, err := url.Parse(endpoint)
	if err != nil {
		return nil, &APIError{Message: "could not parse endpoint: " + err.Error()}
	}
	return &client{endpoint: endpoint, http: c}, nil
}

func (c *client) Register(name, email, password string) error {
	u, err := c.url("/register")
	if err != nil {
		return err
	}

	body, err := json.Marshal(p{"name": name, "email": email, "password": password})
	if err != nil {
		return &APIError{Message: "could not serialize registration: " + err.Error()}
	}

	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return &APIError{Message: "could not build request: " + err.Error()}
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: "could not perform request: " + err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res.Body, res.StatusCode)
	}
	return nil
}

func (c *client) Login(email, password string) (*LoginResult, error) {
	u, err := c.url("/login")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(p{"email": email, "password": password})
	if err != nil {
		return nil, &APIError{Message: "could not serialize email & password: " + err.Error()}
	}

	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Message: "could not build request: " + err.Error()}
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Message: "could not perform request: " + err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return nil, parseAPIError(res.Body, res.StatusCode)
	}

	var login struct {
		LoginResult LoginResult `json:"loginResult"`
	}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&login); err != nil {
		return nil, &APIError{Message: "could not parse response: " + err.Error()}
	}

	c.bearer = login.LoginResult.Token
	return &login.LoginResult, nil
}

func (c *client) Stories(location bool) ([]Story, error) {
	if c.bearer == "" {
		return nil, ErrNotAuthenticated
	}

	u, err := c.url("/stories")
	if err != nil {
		return nil, err
	}
	if location {
		u += "?location=1"
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Message: "could not build request: " + err.Error()}
	}
	req.Close = true
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.bearer))

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Message: "could not perform request: " + err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return nil, parseAPIError(res.Body, res.StatusCode)
	}

	var feed struct {
		ListStory []Story `json:"listStory"`
	}
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&feed); err != nil {
		return nil, &APIError{Message: "could not parse response: " + err.Error()}
	}
	return feed.ListStory, nil
}

func (c *client) AddStory(submission Submission) error {
	token := submission.Token
	if token == "" {
		token = c.bearer
	}
	if token == "" {
		return ErrNotAuthenticated
	}

	u, err := c.url("/stories")
	if err != nil {
		return err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("description", submission.Description); err != nil {
		return &APIError{Message: "could not write description field: " + err.Error()}
	}

	name := submission.PhotoName
	if name == "" {
		name = "photo.jpg"
	}
	photo, err := form.CreateFormFile("photo", name)
	if err != nil {
		return &APIError{Message: "could not create photo part: " + err.Error()}
	}
	if _, err := photo.Write(submission.Photo); err != nil {
		return &APIError{Message: "could not write photo part: " + err.Error()}
	}

	if submission.Lat != nil && submission.Lon != nil {
		if err := form.WriteField("lat", strconv.FormatFloat(*submission.Lat, 'f', -1, 64)); err != nil {
			return &APIError{Message: "could not write lat field: " + err.Error()}
		}
		if err := form.WriteField("lon", strconv.FormatFloat(*submission.Lon, 'f', -1, 64)); err != nil {
			return &APIError{Message: "could not write lon field: " + err.Error()}
		}
	}

	if err := form.Close(); err != nil {
		return &APIError{Message: "could not finalize form: " + err.Error()}
	}

	req, err := http.NewRequest(http.MethodPost, u, &body)
	if err != nil {
		return &APIError{Message: "could not build request: " + err.Error()}
	}
	req.Close = true
	req.Header.Add("Content-Type", form.FormDataContentType())
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))

	res, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: "could not perform request: " + err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res.Body, res.StatusCode)
	}
	return nil
}

func (c *client) BearerToken() string {
	return c.bearer
}

func (c *client) SetBearerToken(token string) {
	c.bearer = token
}

func (c *client) url(endpoint string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", &APIError{Message: "could not parse endpoint: " + err.Error()}
	}
	u.Path = path.Join(u.Path, endpoint)
	return u.String(), nil
}
