package service_test

import (
	"github.com/zanphear/planview/internal/repository"

	"github.com/google/uuid"
)

func repositoryLinks(assignees []uuid.UUID) repository.TaskLinks {
	return repository.TaskLinks{AssigneeIDs: assignees}
}
