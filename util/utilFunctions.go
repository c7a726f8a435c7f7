package util

import (
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"log"
	"os"
	"strings"
)

var DB *sql.DB
var JWTSecret string
var ClientID string
var ClientSecret string
var FrontendURL string
var BackendURL string

// Cashfree holds the payment gateway settings populated at boot.
var Cashfree CashfreeConfig

// CashfreeConfig is the explicit gateway configuration handed to the
// purchase flow instead of ambient env lookups scattered through it.
type CashfreeConfig struct {
	BaseURL       string
	AppID         string
	SecretKey     string
	WebhookSecret string
}

func cashfreeBaseURL() string {
	if os.Getenv("CASHFREE_ENVIRONMENT") == "production" {
		return "https://api.cashfree.com"
	}
	return "https://sandbox.cashfree.com"
}

func populateURLVars() {
	FrontendURL = os.Getenv("FRONTEND_URL")
	if FrontendURL == "" {
		FrontendURL = "http://localhost:3000"
	}
	BackendURL = os.Getenv("BACKEND_URL")
	if BackendURL == "" {
		BackendURL = "http://localhost:8080"
	}
}

func getDBCredentialsAndPopulateSecrets() (string, error) {
	if env := os.Getenv("ENV"); env == "DEV" || env == "DEV_DB" {
		err := godotenv.Load()
		if err != nil {
			return "", errors.New("couldn't get environment variables")
		}
		dbUser := os.Getenv("DB_USER")
		dbPass := os.Getenv("DB_PASS")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		sslMode := os.Getenv("SSL_MODE")

		JWTSecret = os.Getenv("JWT_SECRET")
		ClientID = os.Getenv("GOOGLE_CLIENT_ID")
		ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
		Cashfree = CashfreeConfig{
			BaseURL:       cashfreeBaseURL(),
			AppID:         os.Getenv("CASHFREE_APP_ID"),
			SecretKey:     os.Getenv("CASHFREE_SECRET_KEY"),
			WebhookSecret: os.Getenv("CASHFREE_WEBHOOK_SECRET"),
		}
		populateURLVars()
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbHost, dbPort, dbUser, dbPass, dbName, sslMode), nil
	}
	name := os.Getenv("SECRET_VERSION_NAME")
	ctx := context.Background()
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", errors.New("couldn't get cloud secret")
	}
	defer client.Close()
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	}
	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		log.Fatal("failed to access secret version: ", err)
	}
	// Secret payload layout: clientID clientSecret jwtSecret cashfreeAppID
	// cashfreeSecretKey cashfreeWebhookSecret, then the DB connect string.
	words := strings.Fields(string(result.Payload.Data))
	if len(words) < 7 {
		return "", errors.New("malformed secret payload")
	}
	ClientID = words[0]
	ClientSecret = words[1]
	JWTSecret = words[2]
	Cashfree = CashfreeConfig{
		BaseURL:       cashfreeBaseURL(),
		AppID:         words[3],
		SecretKey:     words[4],
		WebhookSecret: words[5],
	}
	populateURLVars()
	return strings.Join(words[6:], " "), nil
}

func DBConnectAndPopulateDBVar() error {
	connectString, err := getDBCredentialsAndPopulateSecrets()
	if err != nil {
		return errors.New("couldn't get credentials")
	}
	DB, err = sql.Open("postgres", connectString)
	if err != nil {
		return err
	}
	if err = DB.Ping(); err != nil {
		return err
	}
	return nil
}

func GetGoogleConfig() *oauth2.Config {
	return &oauth2.Config{
		RedirectURL:  BackendURL + "/api/auth/google/callback",
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}
