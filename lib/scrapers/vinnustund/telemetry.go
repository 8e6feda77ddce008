package vinnustund

import "github.com/Andriy31193/smastund-scrapper/lib/telemetry"

var tracer = telemetry.Tracer("scrapers/vinnustund")
