package dlive

// Package dlive resolves broadcast metadata via the DLive GraphQL API and
// maps the raw responses into domain values, normalizing the field shapes
// observed across API revisions.
