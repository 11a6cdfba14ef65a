package main

import (
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"seating/solver"
)

var requiredEnv = []string{"PGCONN", "CLIENT_ID", "CLIENT_SECRET", "ADMINS"}

func loadEnv() {
	for _, p := range []string{".env", "../.env"} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("failed to load %s: %v", p, err)
			}
			return
		}
	}
}

func missingEnv() []string {
	var missing []string
	for _, key := range requiredEnv {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func listenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

// solverParams applies ITERATIONS on top of the defaults.
func solverParams() solver.Params {
	p := solver.DefaultParams
	if v := os.Getenv("ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Printf("ignoring invalid ITERATIONS=%q", v)
		} else {
			p.Iterations = n
		}
	}
	return p
}

// newRNG is seeded from SEED when set, so runs can be reproduced.
func newRNG() *rand.Rand {
	if v := os.Getenv("SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return rand.New(rand.NewSource(seed))
		}
		log.Printf("ignoring invalid SEED=%q", v)
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
