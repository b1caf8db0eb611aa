package cmd

import (
	"entitlement-manager/core/app"
	"entitlement-manager/feature/entitlements"
	"entitlement-manager/feature/integrity"
)

// integrityTargets exposes only the dependencies the container actually opened.
func integrityTargets(c *app.Container) integrity.Targets {
	t := integrity.Targets{
		Storage: c.Storage,
		Bucket:  c.Config.Storage.Bucket,
		Region:  c.Config.Storage.Region,
		DB:      c.DB,
		Catalog: c.Catalog,
	}
	if c.Redis != nil {
		t.Redis = c.Redis
	}
	return t
}

func attemptLister(c *app.Container) entitlements.AttemptLister {
	if c.Ledger == nil {
		return nil
	}
	return c.Ledger
}
