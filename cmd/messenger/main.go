package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/messengerservice"
)

func main() {
	if err := messengerservice.Run(); err != nil {
		log.Error().Err(err).Msg("messenger exited with error")
		os.Exit(1)
	}
}
