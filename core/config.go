package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Template sources
const (
	TemplateSourceRemote = "remote"
	TemplateSourceMirror = "mirror"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		SecretKey          string
		JWTExpirationDelta time.Duration
		BodyLimit          string
		UploadBodyLimit    string // background uploads only; they may exceed the presign threshold
	}

	BackendConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	StorageConfig struct {
		UploadBaseURL    string
		CDNBaseURL       string
		PresignThreshold int64 // bytes
	}

	RenderConfig struct {
		Width              int
		Height             int
		ExportScale        float64
		TimeZone           string
		FontDir            string
		BestEffortTimeout  time.Duration
		StripUnknownTokens bool
	}

	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	EmailConfig struct {
		DefaultFrom    mail.Address
		SendgridApiKey string
	}

	Config struct {
		Env             string
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string
		TemplateSource  string

		Server   ServerConfig
		Backend  BackendConfig
		Storage  StorageConfig
		Render   RenderConfig
		Database DatabaseConfig
		Email    EmailConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Location returns the time zone certificates dates are formatted in.
func (c RenderConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Digital Madrasa")
	v.SetDefault("frontendBaseURL", "https://digitalmadrasa.co.in")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("templateSource", TemplateSourceRemote)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.secretKey", "k2v!rz7#q$w0-cert(h@p)9tm=3uv5l&o8x^ds1y%gb6n4e*fj")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.bodyLimit", "8M")
	v.SetDefault("server.uploadBodyLimit", "512M")

	v.SetDefault("backend.baseURL", "https://srv.digitalmadrasa.co.in/api/v1")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 15*time.Second)

	v.SetDefault("storage.uploadBaseURL", "https://srv.digitalmadrasa.co.in/api/v1")
	v.SetDefault("storage.cdnBaseURL", "https://cdn.digitalmadrasa.co.in")
	v.SetDefault("storage.presignThreshold", int64(50*1024*1024))

	v.SetDefault("render.width", 2000)
	v.SetDefault("render.height", 1414)
	v.SetDefault("render.exportScale", 2.0)
	v.SetDefault("render.timeZone", "Asia/Kolkata")
	v.SetDefault("render.fontDir", "")
	v.SetDefault("render.bestEffortTimeout", 3*time.Second)
	v.SetDefault("render.stripUnknownTokens", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "madrasa")
	v.SetDefault("database.password", "madrasa")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "madrasa")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("email.defaultFromName", "Digital Madrasa")
	v.SetDefault("email.defaultFromAddress", "noreply@digitalmadrasa.co.in")
	v.SetDefault("email.sendgridApiKey", "")
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values are read from env vars prefixed with the ENV name, e.g. `PROD_BACKEND_TOKEN`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("appName"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		TemplateSource:  v.GetString("templateSource"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			SecretKey:          v.GetString("server.secretKey"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			BodyLimit:          v.GetString("server.bodyLimit"),
			UploadBodyLimit:    v.GetString("server.uploadBodyLimit"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.baseURL"), "/"),
			Token:   v.GetString("backend.token"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		Storage: StorageConfig{
			UploadBaseURL:    strings.TrimRight(v.GetString("storage.uploadBaseURL"), "/"),
			CDNBaseURL:       strings.TrimRight(v.GetString("storage.cdnBaseURL"), "/"),
			PresignThreshold: v.GetInt64("storage.presignThreshold"),
		},
		Render: RenderConfig{
			Width:              v.GetInt("render.width"),
			Height:             v.GetInt("render.height"),
			ExportScale:        v.GetFloat64("render.exportScale"),
			TimeZone:           v.GetString("render.timeZone"),
			FontDir:            v.GetString("render.fontDir"),
			BestEffortTimeout:  v.GetDuration("render.bestEffortTimeout"),
			StripUnknownTokens: v.GetBool("render.stripUnknownTokens"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Email: EmailConfig{
			DefaultFrom: mail.Address{
				Name:    v.GetString("email.defaultFromName"),
				Address: v.GetString("email.defaultFromAddress"),
			},
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
		},
	}
}
