package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"member": {
		"assignment:view",
		"submission:draft",
		"submission:submit",
		"submission:view-own",
		"review:queue",
		"review:submit",
		"review:amend",
	},
	"organizer": {
		"assignment:view",
		"assignment:create",
		"assignment:retire",
		"submission:view-all",
		"submission:accept-late",
		"review:allocate",
		"review:view-all",
		"grade:finalize",
		"grade:override",
		"grade:release",
		"users:bulk_upsert",
		"users:list",
		"users:manage",
	},
	"admin": {
		"*", // everything
	},
}
