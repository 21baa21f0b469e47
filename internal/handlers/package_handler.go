package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/middleware"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/joshua-takyi/tourbook/internal/services"
)

func AddPackage(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pkg models.Package
		if !bindJSON(c, &pkg) {
			return
		}
		if pkg.GuideEmail == "" {
			if caller, ok := middleware.CurrentUser(c); ok && caller.HasRole(models.RoleGuide) {
				pkg.GuideEmail = caller.Email
			}
		}
		created, err := p.CreatePackage(c.Request.Context(), &pkg)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(created, "Package created successfully"))
	}
}

func GetAllPackages(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packages, err := p.ListPackages(c.Request.Context(), c.Query("category"), c.Query("search"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(packages, "Packages retrieved successfully"))
	}
}

func GetLimitedPackages(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packages, err := p.ListLimitedPackages(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(packages, "Packages retrieved successfully"))
	}
}

func GetPackage(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg, err := p.GetPackage(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(pkg, "Package retrieved successfully"))
	}
}

func UpdatePackage(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]interface{}
		if !bindJSON(c, &fields) {
			return
		}
		pkg, err := p.UpdatePackage(c.Request.Context(), c.Param("id"), fields)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(pkg, "Package updated successfully"))
	}
}

func DeletePackage(p *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.DeletePackage(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Package deleted successfully"))
	}
}
