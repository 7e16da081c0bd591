package config

import "os"

type Config struct {
	Port         string
	ServerURL    string
	RoomID       string
	UserName     string
	UserAvatar   string
	StorageScope string
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "4000")
	c.ServerURL = getenv("VIBEPARTY_SERVER_URL", "ws://localhost:4000/ws")
	c.RoomID = getenv("VIBEPARTY_ROOM", "friendship")
	c.UserName = getenv("VIBEPARTY_NAME", "Guest")
	c.UserAvatar = getenv("VIBEPARTY_AVATAR", "🙂")
	c.StorageScope = getenv("VIBEPARTY_SCOPE", "")
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
